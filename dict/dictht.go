package dict

import "github.com/pengdafu/redis-dict/zmalloc"

type dictHt struct {
	table      []*Entry
	size, used int64
	sizeMask   uint64
}

func newDictHt(size int64) dictHt {
	return dictHt{
		table:    zmalloc.MakeSlice[*Entry](int(size)),
		size:     size,
		sizeMask: uint64(size - 1),
	}
}

func (ht *dictHt) reset() {
	ht.table = nil
	ht.size = 0
	ht.sizeMask = 0
	ht.used = 0
}

func (ht *dictHt) free() {
	if ht.table != nil {
		zmalloc.FreeSlice(ht.table)
	}
	ht.reset()
}
