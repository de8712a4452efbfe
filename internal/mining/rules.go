package mining

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"basket-dashboard/internal/models"
)

const DefaultMinLift = 1.0

var ErrNoFrequentItemsets = errors.New("no frequent itemsets: lower the minimum support")

// RuleMetric names the metric that association rules are filtered on.
type RuleMetric string

const (
	MetricSupport    RuleMetric = "support"
	MetricConfidence RuleMetric = "confidence"
	MetricLift       RuleMetric = "lift"
	MetricLeverage   RuleMetric = "leverage"
	MetricConviction RuleMetric = "conviction"
	MetricZhang      RuleMetric = "zhangs_metric"
	MetricJaccard    RuleMetric = "jaccard"
	MetricCertainty  RuleMetric = "certainty"
	MetricKulczynski RuleMetric = "kulczynski"
)

var Metrics = []RuleMetric{
	MetricSupport, MetricConfidence, MetricLift, MetricLeverage, MetricConviction,
	MetricZhang, MetricJaccard, MetricCertainty, MetricKulczynski,
}

func ParseMetric(s string) (RuleMetric, error) {
	m := RuleMetric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Metrics {
		if m == known {
			return m, nil
		}
	}
	names := make([]string, len(Metrics))
	for i, k := range Metrics {
		names[i] = string(k)
	}
	return "", fmt.Errorf("unknown rule metric %q (use one of: %s)", s, strings.Join(names, ", "))
}

type RuleOptions struct {
	Metric       RuleMetric
	MinThreshold float64
}

func DefaultRuleOptions() RuleOptions {
	return RuleOptions{Metric: MetricLift, MinThreshold: DefaultMinLift}
}

func (m RuleMetric) value(r models.Rule) float64 {
	switch m {
	case MetricSupport:
		return r.Support
	case MetricConfidence:
		return r.Confidence
	case MetricLeverage:
		return r.Leverage
	case MetricConviction:
		return float64(r.Conviction)
	case MetricZhang:
		return r.ZhangsMetric
	case MetricJaccard:
		return r.Jaccard
	case MetricCertainty:
		return r.Certainty
	case MetricKulczynski:
		return r.Kulczynski
	default:
		return r.Lift
	}
}

// AssociationRules derives rules from every frequent itemset of two or more
// items. For each itemset, antecedents run from the largest proper subset
// down to single items, in lexicographic combination order; the consequent is
// the complement. Rules whose metric falls below the threshold are dropped.
func AssociationRules(itemsets []models.FrequentItemset, opt RuleOptions) ([]models.Rule, error) {
	if len(itemsets) == 0 {
		return nil, ErrNoFrequentItemsets
	}
	if opt.Metric == "" {
		opt.Metric = MetricLift
	}
	if _, err := ParseMetric(string(opt.Metric)); err != nil {
		return nil, err
	}

	support := make(map[string]float64, len(itemsets))
	for _, fi := range itemsets {
		support[fi.Items.Key()] = fi.Support
	}
	lookup := func(s models.Itemset) (float64, error) {
		v, ok := support[s.Key()]
		if !ok {
			return 0, fmt.Errorf("itemset %s missing from frequent itemsets; supports are incomplete", s)
		}
		return v, nil
	}

	var rules []models.Rule
	for _, fi := range itemsets {
		k := len(fi.Items)
		if k < 2 {
			continue
		}
		for size := k - 1; size >= 1; size-- {
			var err error
			combinations(k, size, func(idx []int) bool {
				ante, cons := split(fi.Items, idx)
				var sA, sC float64
				if sA, err = lookup(ante); err != nil {
					return false
				}
				if sC, err = lookup(cons); err != nil {
					return false
				}
				r := newRule(ante, cons, sA, sC, fi.Support)
				if opt.Metric.value(r) >= opt.MinThreshold {
					rules = append(rules, r)
				}
				return true
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return rules, nil
}

func split(items models.Itemset, idx []int) (ante, cons models.Itemset) {
	ante = make(models.Itemset, 0, len(idx))
	cons = make(models.Itemset, 0, len(items)-len(idx))
	next := 0
	for i, it := range items {
		if next < len(idx) && idx[next] == i {
			ante = append(ante, it)
			next++
			continue
		}
		cons = append(cons, it)
	}
	return ante, cons
}

// combinations calls fn with every size-r index combination of 0..n-1 in
// lexicographic order until fn returns false.
func combinations(n, r int, fn func([]int) bool) {
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := r - 1
		for i >= 0 && idx[i] == i+n-r {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func newRule(ante, cons models.Itemset, sA, sC, sAC float64) models.Rule {
	confidence := sAC / sA
	lift := confidence / sC
	leverage := sAC - sA*sC

	conviction := math.Inf(1)
	if confidence < 1 {
		conviction = (1 - sC) / (1 - confidence)
	}

	zhang := 0.0
	if denom := math.Max(sAC*(1-sA), sA*(sC-sAC)); denom != 0 {
		zhang = leverage / denom
	}

	certainty := 0.0
	if sC < 1 {
		certainty = (confidence - sC) / (1 - sC)
	}

	return models.Rule{
		Antecedents:       ante,
		Consequents:       cons,
		AntecedentSupport: sA,
		ConsequentSupport: sC,
		Support:           sAC,
		Confidence:        confidence,
		Lift:              lift,
		Leverage:          leverage,
		Conviction:        models.Metric(conviction),
		ZhangsMetric:      zhang,
		Jaccard:           sAC / (sA + sC - sAC),
		Certainty:         certainty,
		Kulczynski:        (confidence + sAC/sC) / 2,
	}
}
