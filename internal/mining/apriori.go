package mining

import (
	"context"
	"fmt"
	"math/bits"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"basket-dashboard/internal/basket"
	"basket-dashboard/internal/models"
)

const (
	DefaultMinSupport = 0.02
	// candidates counted per errgroup task
	countChunk = 256
)

type Options struct {
	MinSupport float64
	// MaxLen caps the itemset length; 0 means unlimited.
	MaxLen int
	// Workers bounds the goroutines counting supports; 0 uses GOMAXPROCS.
	Workers int
}

func DefaultOptions() Options {
	return Options{MinSupport: DefaultMinSupport}
}

// bitset holds one bit per transaction.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int) { b[i/64] |= 1 << (uint(i) % 64) }

// andCount returns the popcount of the intersection of all sets.
func andCount(sets []bitset) int {
	if len(sets) == 0 {
		return 0
	}
	n := 0
	for w := range sets[0] {
		word := sets[0][w]
		for _, s := range sets[1:] {
			word &= s[w]
			if word == 0 {
				break
			}
		}
		n += bits.OnesCount64(word)
	}
	return n
}

// level is a set of frequent itemsets of equal length, stored as sorted
// column-index tuples in lexicographic order.
type level struct {
	sets    [][]int
	counts  []int
	members map[string]struct{}
}

func tupleKey(t []int) string {
	b := make([]byte, 0, len(t)*4)
	for _, v := range t {
		b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return string(b)
}

func newLevel(sets [][]int, counts []int) level {
	l := level{sets: sets, counts: counts, members: make(map[string]struct{}, len(sets))}
	for _, s := range sets {
		l.members[tupleKey(s)] = struct{}{}
	}
	return l
}

// Apriori returns every itemset whose support reaches opt.MinSupport, ordered
// by length and then lexicographically by item column. Candidates of length k
// are joined from frequent (k-1)-itemsets sharing a (k-2)-prefix and dropped
// unless all of their (k-1)-subsets are frequent.
func Apriori(ctx context.Context, m basket.Matrix, opt Options) ([]models.FrequentItemset, error) {
	if opt.MinSupport <= 0 || opt.MinSupport > 1 {
		return nil, fmt.Errorf("min support must be in (0, 1], got %v", opt.MinSupport)
	}
	n := len(m.Rows)
	if n == 0 {
		return nil, basket.ErrNoTransactions
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	cols := make([]bitset, len(m.Columns))
	for j := range cols {
		cols[j] = newBitset(n)
	}
	for i, row := range m.Rows {
		for j, present := range row {
			if present {
				cols[j].set(i)
			}
		}
	}

	frequent := func(count int) bool {
		return float64(count)/float64(n) >= opt.MinSupport
	}

	var out []models.FrequentItemset
	emit := func(l level) {
		for i, s := range l.sets {
			items := make(models.Itemset, len(s))
			for k, j := range s {
				items[k] = m.Columns[j]
			}
			out = append(out, models.FrequentItemset{
				Support: float64(l.counts[i]) / float64(n),
				Items:   items,
			})
		}
	}

	var sets [][]int
	var counts []int
	for j, b := range cols {
		if c := andCount([]bitset{b}); frequent(c) {
			sets = append(sets, []int{j})
			counts = append(counts, c)
		}
	}
	cur := newLevel(sets, counts)

	for k := 2; len(cur.sets) > 0; k++ {
		emit(cur)
		if opt.MaxLen > 0 && k > opt.MaxLen {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands := generateCandidates(cur)
		if len(cands) == 0 {
			break
		}
		candCounts, err := countSupports(ctx, cols, cands, workers)
		if err != nil {
			return nil, err
		}
		var next [][]int
		var nextCounts []int
		for i, c := range candCounts {
			if frequent(c) {
				next = append(next, cands[i])
				nextCounts = append(nextCounts, c)
			}
		}
		cur = newLevel(next, nextCounts)
	}
	return out, nil
}

// generateCandidates joins pairs of itemsets that share everything but their
// last item, then prunes candidates with an infrequent subset. The result is
// in lexicographic order because prev.sets is.
func generateCandidates(prev level) [][]int {
	var out [][]int
	sets := prev.sets
	for a := 0; a < len(sets); a++ {
		pa := sets[a]
		prefix := pa[:len(pa)-1]
		for b := a + 1; b < len(sets); b++ {
			pb := sets[b]
			if !slices.Equal(prefix, pb[:len(pb)-1]) {
				break
			}
			cand := make([]int, len(pa)+1)
			copy(cand, pa)
			cand[len(pa)] = pb[len(pb)-1]
			if allSubsetsFrequent(cand, prev) {
				out = append(out, cand)
			}
		}
	}
	return out
}

func allSubsetsFrequent(cand []int, prev level) bool {
	// The two subsets dropping one of the last two items are the join parents.
	sub := make([]int, 0, len(cand)-1)
	for skip := 0; skip < len(cand)-2; skip++ {
		sub = sub[:0]
		sub = append(sub, cand[:skip]...)
		sub = append(sub, cand[skip+1:]...)
		if _, ok := prev.members[tupleKey(sub)]; !ok {
			return false
		}
	}
	return true
}

func countSupports(ctx context.Context, cols []bitset, cands [][]int, workers int) ([]int, error) {
	counts := make([]int, len(cands))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(cands); start += countChunk {
		end := min(start+countChunk, len(cands))
		g.Go(func() error {
			sets := make([]bitset, 0, len(cands[start]))
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				sets = sets[:0]
				for _, j := range cands[i] {
					sets = append(sets, cols[j])
				}
				counts[i] = andCount(sets)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}
