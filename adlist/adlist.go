// Package adlist implements a generic doubly linked list.
package adlist

const (
	StartHead = 0
	StartTail = 1
)

type List struct {
	head, tail *ListNode
	dup        func(interface{}) interface{}
	free       func(interface{})
	match      func(ptr interface{}, key interface{}) bool
	len        int
}

type ListNode struct {
	prev  *ListNode
	next  *ListNode
	value interface{}
}

type ListIter struct {
	next      *ListNode
	direction int
}

func Create() *List {
	return new(List)
}

func (l *List) SetFreeMethod(fn func(interface{})) {
	l.free = fn
}

func (l *List) SetMatchMethod(fn func(interface{}, interface{}) bool) {
	l.match = fn
}

func (l *List) SetDupMethod(fn func(interface{}) interface{}) {
	l.dup = fn
}

func (l *List) Len() int {
	return l.len
}

func (l *List) First() *ListNode {
	return l.head
}

func (l *List) Last() *ListNode {
	return l.tail
}

func (l *List) AddNodeHead(value interface{}) *List {
	node := &ListNode{value: value}
	if l.len == 0 {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}

	l.len++
	return l
}

func (l *List) AddNodeTail(value interface{}) *List {
	node := &ListNode{value: value}
	if l.len == 0 {
		l.head = node
		l.tail = node
	} else {
		node.prev = l.tail
		l.tail.next = node
		l.tail = node
	}

	l.len++
	return l
}

// InsertNode adds value next to oldNode, after it if after is true.
func (l *List) InsertNode(oldNode *ListNode, value interface{}, after bool) *List {
	node := &ListNode{value: value}
	if after {
		node.prev = oldNode
		node.next = oldNode.next
		if l.tail == oldNode {
			l.tail = node
		}
	} else {
		node.next = oldNode
		node.prev = oldNode.prev
		if l.head == oldNode {
			l.head = node
		}
	}
	if node.prev != nil {
		node.prev.next = node
	}
	if node.next != nil {
		node.next.prev = node
	}
	l.len++
	return l
}

// DelNode unlinks node and calls the free method on its value.
func (l *List) DelNode(node *ListNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	if l.free != nil {
		l.free(node.value)
	}
	node.prev, node.next = nil, nil
	l.len--
}

// Empty removes every node, keeping the methods.
func (l *List) Empty() {
	for cur := l.head; cur != nil; {
		next := cur.next
		if l.free != nil {
			l.free(cur.value)
		}
		cur.prev, cur.next = nil, nil
		cur = next
	}
	l.head, l.tail = nil, nil
	l.len = 0
}

// Iterator returns an iterator starting from the head (StartHead) or the
// tail (StartTail). The node returned by Next may be deleted.
func (l *List) Iterator(direction int) *ListIter {
	iter := &ListIter{direction: direction}
	if direction == StartHead {
		iter.next = l.head
	} else {
		iter.next = l.tail
	}
	return iter
}

// Dup copies the list, using the dup method on every value if set.
func (l *List) Dup() *List {
	cp := Create()
	cp.dup, cp.free, cp.match = l.dup, l.free, l.match
	for node := l.head; node != nil; node = node.next {
		value := node.value
		if l.dup != nil {
			value = l.dup(value)
		}
		cp.AddNodeTail(value)
	}
	return cp
}

// SearchKey returns the first node matching key, using the match method or
// == when there is none.
func (l *List) SearchKey(key interface{}) *ListNode {
	for node := l.head; node != nil; node = node.next {
		if l.match != nil {
			if l.match(node.value, key) {
				return node
			}
		} else if node.value == key {
			return node
		}
	}
	return nil
}

func (iter *ListIter) Next() *ListNode {
	cur := iter.next
	if cur != nil {
		if iter.direction == StartHead {
			iter.next = cur.next
		} else {
			iter.next = cur.prev
		}
	}
	return cur
}

func (n *ListNode) NodeValue() interface{} {
	if n == nil {
		return nil
	}
	return n.value
}

func (n *ListNode) SetNodeValue(value interface{}) {
	n.value = value
}

func (n *ListNode) Next() *ListNode {
	return n.next
}

func (n *ListNode) Prev() *ListNode {
	return n.prev
}
