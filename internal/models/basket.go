package models

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	default:
		return "empty"
	}
}

type Cell struct {
	Value string
	Kind  CellKind
}

// Row is one data row of an uploaded sheet. Index is the 1-based data row
// number in the source file, header excluded.
type Row struct {
	Index int
	Cells []Cell
}

type Table struct {
	Name   string
	Header []string
	Rows   []Row
}

// Itemset is a sorted set of item names.
type Itemset []string

func NewItemset(items ...string) Itemset {
	s := slices.Clone(items)
	slices.Sort(s)
	return slices.Compact(s)
}

func (s Itemset) String() string {
	return "{" + strings.Join(s, ", ") + "}"
}

// Key returns a map key that cannot collide for distinct itemsets.
func (s Itemset) Key() string {
	return strings.Join(s, "\x1f")
}

func (s Itemset) Contains(item string) bool {
	_, ok := slices.BinarySearch(s, item)
	return ok
}

type FrequentItemset struct {
	Support float64 `json:"support" yaml:"support"`
	Items   Itemset `json:"itemsets" yaml:"itemsets"`
}

// Metric is a rule metric that may be infinite (conviction at confidence 1).
// Non-finite values encode to JSON null.
type Metric float64

func (m Metric) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

type Rule struct {
	Antecedents       Itemset `json:"antecedents" yaml:"antecedents"`
	Consequents       Itemset `json:"consequents" yaml:"consequents"`
	AntecedentSupport float64 `json:"antecedent_support" yaml:"antecedent_support"`
	ConsequentSupport float64 `json:"consequent_support" yaml:"consequent_support"`
	Support           float64 `json:"support" yaml:"support"`
	Confidence        float64 `json:"confidence" yaml:"confidence"`
	Lift              float64 `json:"lift" yaml:"lift"`
	Leverage          float64 `json:"leverage" yaml:"leverage"`
	Conviction        Metric  `json:"conviction" yaml:"conviction"`
	ZhangsMetric      float64 `json:"zhangs_metric" yaml:"zhangs_metric"`
	Jaccard           float64 `json:"jaccard" yaml:"jaccard"`
	Certainty         float64 `json:"certainty" yaml:"certainty"`
	Kulczynski        float64 `json:"kulczynski" yaml:"kulczynski"`
}

type MissingCount struct {
	Column  string `json:"column" yaml:"column"`
	Missing int    `json:"missing" yaml:"missing"`
}

type CleaningSummary struct {
	RowsBefore       int            `json:"rows_before" yaml:"rows_before"`
	DuplicatesBefore int            `json:"duplicates_before" yaml:"duplicates_before"`
	RowsAfter        int            `json:"rows_after" yaml:"rows_after"`
	DuplicatesAfter  int            `json:"duplicates_after" yaml:"duplicates_after"`
	Missing          []MissingCount `json:"missing" yaml:"missing"`
}

type RunStats struct {
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	LastDuration time.Duration `json:"last_duration"`
	LastRun      time.Time     `json:"last_run"`
}
