package dict

import (
	"fmt"
	"strings"
)

const statsVectLen = 50

// HtStats describes the chains of one table.
type HtStats struct {
	TableSize   int64
	Elements    int64
	Slots       int64 // non empty buckets
	MaxChainLen int64
	TotChainLen int64
	// ChainLen[i] is the number of buckets holding i elements, the last
	// slot counting every longer chain.
	ChainLen [statsVectLen]int64
}

func (dict *Dict) htStats(table int) HtStats {
	ht := &dict.ht[table]
	stats := HtStats{TableSize: ht.size, Elements: ht.used}
	for i := int64(0); i < ht.size; i++ {
		he := ht.table[i]
		if he == nil {
			stats.ChainLen[0]++
			continue
		}
		stats.Slots++
		chainLen := int64(0)
		for ; he != nil; he = he.next {
			chainLen++
		}
		idx := chainLen
		if idx >= statsVectLen {
			idx = statsVectLen - 1
		}
		stats.ChainLen[idx]++
		if chainLen > stats.MaxChainLen {
			stats.MaxChainLen = chainLen
		}
		stats.TotChainLen += chainLen
	}
	return stats
}

// Stats returns the statistics of the main table and, while rehashing, of
// the table being filled.
func (dict *Dict) Stats() []HtStats {
	if dict.ht[0].size == 0 {
		return nil
	}
	stats := []HtStats{dict.htStats(0)}
	if dict.IsRehashing() {
		stats = append(stats, dict.htStats(1))
	}
	return stats
}

func (s *HtStats) Describe(tableID int) string {
	var b strings.Builder
	if s.Elements == 0 {
		fmt.Fprintf(&b, "No stats available for empty dictionaries\n")
		return b.String()
	}
	name := "main hash table"
	if tableID == 1 {
		name = "rehashing target"
	}
	fmt.Fprintf(&b, "Hash table %d stats (%s):\n", tableID, name)
	fmt.Fprintf(&b, " table size: %d\n", s.TableSize)
	fmt.Fprintf(&b, " number of elements: %d\n", s.Elements)
	fmt.Fprintf(&b, " different slots: %d\n", s.Slots)
	fmt.Fprintf(&b, " max chain length: %d\n", s.MaxChainLen)
	fmt.Fprintf(&b, " avg chain length (counted): %.02f\n", float64(s.TotChainLen)/float64(s.Slots))
	fmt.Fprintf(&b, " avg chain length (computed): %.02f\n", float64(s.Elements)/float64(s.Slots))
	fmt.Fprintf(&b, " Chain length distribution:\n")
	for i, n := range s.ChainLen {
		if n == 0 {
			continue
		}
		prefix := ""
		if i == statsVectLen-1 {
			prefix = ">= "
		}
		fmt.Fprintf(&b, "   %s%d: %d (%.02f%%)\n", prefix, i, n, float64(n)/float64(s.TableSize)*100)
	}
	return b.String()
}

// GetStats renders Stats in a human readable form.
func (dict *Dict) GetStats() string {
	stats := dict.Stats()
	if len(stats) == 0 {
		return "No stats available for empty dictionaries\n"
	}
	var b strings.Builder
	for i := range stats {
		b.WriteString(stats[i].Describe(i))
	}
	return b.String()
}
