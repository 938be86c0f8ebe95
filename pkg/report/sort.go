package report

import (
	"sort"

	"github.com/safeops/postureboard/pkg/report/templates"
)

type LessFunc func(p1, p2 *templates.FindingWithCount) bool

// multiSorter implements the Sort interface, sorting the findings within.
type multiSorter struct {
	findings []templates.FindingWithCount
	less     []LessFunc
}

// SortDesc sorts the argument slice according to the LessFunc functions passed to OrderedBy.
func (ms *multiSorter) SortDesc(findings []templates.FindingWithCount) {
	ms.findings = findings
	sort.Stable(sort.Reverse(ms))
}

// OrderedBy returns a Sorter that sorts using the LessFunc functions, in order.
// Call its Sort method to sort the data.
func OrderedBy(less ...LessFunc) *multiSorter {
	return &multiSorter{
		less: less,
	}
}

// Len is part of sort.Interface.
func (ms *multiSorter) Len() int {
	return len(ms.findings)
}

// Swap is part of sort.Interface.
func (ms *multiSorter) Swap(i, j int) {
	ms.findings[i], ms.findings[j] = ms.findings[j], ms.findings[i]
}

// Less is part of sort.Interface. It loops along the less functions until
// it finds a comparison that discriminates between the two items.
func (ms *multiSorter) Less(i, j int) bool {
	p, q := &ms.findings[i], &ms.findings[j]
	var k int
	for k = 0; k < len(ms.less)-1; k++ {
		less := ms.less[k]
		switch {
		case less(p, q):
			return true
		case less(q, p):
			return false
		}
	}
	return ms.less[k](p, q)
}

var (
	findingCompareFunc = []LessFunc{
		func(r1, r2 *templates.FindingWithCount) bool {
			return r1.Occurrences < r2.Occurrences
		}, func(r1, r2 *templates.FindingWithCount) bool {
			return r1.Severity.Rank() > r2.Severity.Rank()
		}, func(r1, r2 *templates.FindingWithCount) bool {
			return r1.RuleID > r2.RuleID
		}}
)
