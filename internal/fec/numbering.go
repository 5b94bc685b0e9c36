package fec

import "sort"

type pieceKey struct {
	Journal  string
	PieceRef string
}

// AssignNumbers hands out a single contiguous 1..N numbering across all
// pieces of the export. Groups are ordered by the earliest valid-or-entry
// date among their lines, then piece reference, then journal code; every
// line of a group receives the group's number. The final row order is
// (number, journal, account number).
func AssignNumbers(records []Record) {
	minValid := map[pieceKey]string{}
	for _, rec := range records {
		key := pieceKey{rec.JournalCode, rec.PieceRef}
		mv := rec.sortValid
		if mv == "" {
			mv = sentinel
		}
		if cur, ok := minValid[key]; !ok || mv < cur {
			minValid[key] = mv
		}
	}

	keys := make([]pieceKey, 0, len(minValid))
	for k := range minValid {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if minValid[a] != minValid[b] {
			return minValid[a] < minValid[b]
		}
		if a.PieceRef != b.PieceRef {
			return a.PieceRef < b.PieceRef
		}
		return a.Journal < b.Journal
	})
	numbers := make(map[pieceKey]int, len(keys))
	for i, k := range keys {
		numbers[k] = i + 1
	}

	for i := range records {
		records[i].EcritureNum = numbers[pieceKey{records[i].JournalCode, records[i].PieceRef}]
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.EcritureNum != b.EcritureNum {
			return a.EcritureNum < b.EcritureNum
		}
		if a.JournalCode != b.JournalCode {
			return a.JournalCode < b.JournalCode
		}
		return a.CompteNum < b.CompteNum
	})
}
