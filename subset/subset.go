/*
Package subset implements exhaustive best-subset selection for least
squares regression.  Candidate predictor subsets are enumerated by a
branch-and-bound search over an explicit node stack: since the residual
sum of squares can only decrease as regressors are added, the RSS of the
model containing every predictor still reachable from a node bounds the
RSS of every subset in that node's subtree, and subtrees that cannot beat
the current best-for-size RSS are pruned.

Subsets are scored by AIC, BIC, adjusted R-squared and Mallow's Cp.  The
parameter count convention is k+1 for a size-k subset in a model with an
intercept (k without one); the same count is used in every criterion so
models of different sizes are comparable.
*/
package subset

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/dr-neptune/lmselect/lm"
)

// Criterion selects the score used to produce the overall ranking.
type Criterion int

const (
	// AIC is the Akaike information criterion, n ln(RSS/n) + 2(k+1).
	AIC Criterion = iota

	// BIC is the Bayesian information criterion, n ln(RSS/n) + ln(n)(k+1).
	BIC

	// AdjR2 is the adjusted R-squared (larger is better).
	AdjR2

	// Cp is Mallow's Cp, RSS/sigma2_full + 2(k+1) - n.
	Cp
)

// CriterionScore holds the scores of one evaluated predictor subset.
type CriterionScore struct {

	// Positions of the subset's predictors (indices into the design's
	// PredictorNames), in increasing order.
	Columns []int

	// Names of the subset's predictors.
	Names []string

	// Number of predictors, excluding the intercept.
	K int

	RSS   float64
	AIC   float64
	BIC   float64
	AdjR2 float64
	Cp    float64
}

// Result holds the outcome of a best-subset search.
type Result struct {

	// BestBySize[k-1] is the minimal-RSS subset of size k, or nil if
	// every size-k subset was rank deficient.
	BestBySize []*CriterionScore

	// Ranked holds every retained subset, ordered by the ranking
	// criterion (ties broken by smaller size, then by column order).
	Ranked []CriterionScore

	// FullSigma2 is the residual variance of the full model, used as
	// the fixed denominator of Cp.
	FullSigma2 float64

	// NumFits counts the least squares fits performed.
	NumFits int

	// Skipped counts subsets excluded as rank deficient.
	Skipped int
}

// Selector specifies a best-subset search over a design matrix.
type Selector struct {
	dm        *lm.DesignMatrix
	maxSize   int
	criterion Criterion
	nbest     int

	// If true, enumerate subsets exhaustively (sizes in parallel)
	// instead of branch-and-bound.  The results are identical; the
	// exhaustive path exists as a cross-check and for small designs.
	exhaustive bool

	log *log.Logger
}

// NewSelector creates a Selector searching subsets of up to maxSize
// predictors of the given design.  The search can be run by calling
// Search.
func NewSelector(dm *lm.DesignMatrix, maxSize int) *Selector {
	return &Selector{
		dm:        dm,
		maxSize:   maxSize,
		criterion: AIC,
		nbest:     1,
	}
}

// Criterion sets the score used for the overall ranking.  The default is
// AIC.
func (s *Selector) Criterion(c Criterion) *Selector {
	s.criterion = c
	return s
}

// NBest sets the number of subsets retained per size.  The default is 1.
func (s *Selector) NBest(nb int) *Selector {
	if nb > 0 {
		s.nbest = nb
	}
	return s
}

// Exhaustive disables branch-and-bound pruning and enumerates every
// subset.
func (s *Selector) Exhaustive(ex bool) *Selector {
	s.exhaustive = ex
	return s
}

// Log takes a Logger value that will be used to log search progress.
func (s *Selector) Log(log *log.Logger) *Selector {
	s.log = log
	return s
}

// node is an immutable record of a search position: the chosen prefix,
// the next candidate column, and the RSS lower bound for the subtree
// (the RSS of the fit on prefix plus all remaining candidates).
type node struct {
	prefix []int
	next   int
	bound  float64
}

// keeper retains the nbest minimal-RSS subsets of one size.
type keeper struct {
	nbest  int
	scores []CriterionScore
}

// worst returns the RSS a new subset must beat to be retained.
func (kp *keeper) worst() float64 {
	if len(kp.scores) < kp.nbest {
		return math.Inf(1)
	}
	return kp.scores[len(kp.scores)-1].RSS
}

// offer inserts the score if it belongs among the nbest, keeping the
// retained scores sorted by RSS with deterministic tie-breaks.
func (kp *keeper) offer(cs CriterionScore) {
	kp.scores = append(kp.scores, cs)
	sort.Slice(kp.scores, func(i, j int) bool {
		a, b := kp.scores[i], kp.scores[j]
		if a.RSS != b.RSS {
			return a.RSS < b.RSS
		}
		return lexLess(a.Columns, b.Columns)
	})
	if len(kp.scores) > kp.nbest {
		kp.scores = kp.scores[:kp.nbest]
	}
}

func lexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Search runs the subset search.  For every size k up to the search
// bound, the reported best subset has minimal RSS among all size-k
// subsets; a rank deficient subset is skipped, never fatal.
func (s *Selector) Search() (*Result, error) {

	dm := s.dm
	q := dm.NumPredictors()
	if q == 0 {
		return nil, &lm.DimensionError{Msg: "design has no predictors to search over"}
	}

	maxSize := s.maxSize
	if maxSize < 1 || maxSize > q {
		maxSize = q
	}

	// The full model's residual variance anchors Cp.  Collinear
	// columns are dropped here so a deficient full design still
	// yields a variance estimate.
	all := make([]int, q)
	for j := range all {
		all[j] = j
	}
	fulldm, err := dm.Select(all)
	if err != nil {
		return nil, err
	}
	full, err := lm.NewOLS(fulldm).DropCollinear(true).Fit()
	if err != nil {
		return nil, err
	}

	sc := &scorer{
		dm:         dm,
		n:          dm.NumObs(),
		tss:        full.TSS(),
		icept:      dm.HasIntercept(),
		fullSigma2: full.Sigma2(),
	}

	keep := make([]*keeper, maxSize)
	for k := range keep {
		keep[k] = &keeper{nbest: s.nbest}
	}

	rslt := &Result{FullSigma2: sc.fullSigma2}
	rslt.NumFits++ // the full fit

	if s.exhaustive {
		if err := s.searchExhaustive(sc, keep, maxSize, rslt); err != nil {
			return nil, err
		}
	} else {
		if err := s.searchBranchBound(sc, keep, maxSize, rslt); err != nil {
			return nil, err
		}
	}

	rslt.BestBySize = make([]*CriterionScore, maxSize)
	for k, kp := range keep {
		for i := range kp.scores {
			rslt.Ranked = append(rslt.Ranked, kp.scores[i])
		}
		if len(kp.scores) > 0 {
			best := kp.scores[0]
			rslt.BestBySize[k] = &best
		}
	}

	crit := s.criterion
	sort.Slice(rslt.Ranked, func(i, j int) bool {
		return critLess(&rslt.Ranked[i], &rslt.Ranked[j], crit)
	})

	if s.log != nil {
		s.log.Printf("subset: %d fits, %d subsets skipped as rank deficient\n",
			rslt.NumFits, rslt.Skipped)
	}

	return rslt, nil
}

// critLess orders scores by the ranking criterion, breaking ties by
// smaller size, then by column order.
func critLess(a, b *CriterionScore, crit Criterion) bool {

	var av, bv float64
	switch crit {
	case AIC:
		av, bv = a.AIC, b.AIC
	case BIC:
		av, bv = a.BIC, b.BIC
	case Cp:
		av, bv = a.Cp, b.Cp
	case AdjR2:
		// Larger is better.
		av, bv = -a.AdjR2, -b.AdjR2
	}

	if av != bv {
		return av < bv
	}
	if a.K != b.K {
		return a.K < b.K
	}
	return lexLess(a.Columns, b.Columns)
}

// scorer computes criterion scores for evaluated subsets.
type scorer struct {
	dm         *lm.DesignMatrix
	n          int
	tss        float64
	icept      bool
	fullSigma2 float64
}

// fitRSS fits the subset and returns its RSS.  ok is false when the
// subset is rank deficient.
func (sc *scorer) fitRSS(cols []int) (float64, bool, error) {

	sub, err := sc.dm.Select(cols)
	if err != nil {
		return 0, false, err
	}
	rslt, err := lm.NewOLS(sub).Fit()
	if err != nil {
		if _, ok := err.(*lm.RankDeficiencyError); ok {
			return 0, false, nil
		}
		return 0, false, err
	}

	return rslt.RSS(), true, nil
}

// score builds the CriterionScore for a subset with the given RSS.
func (sc *scorer) score(cols []int, rss float64) CriterionScore {

	k := len(cols)
	n := float64(sc.n)

	// Parameter count: k plus one for the intercept when present.
	pc := float64(k)
	if sc.icept {
		pc++
	}

	cs := CriterionScore{
		Columns: append([]int(nil), cols...),
		K:       k,
		RSS:     rss,
		AIC:     n*math.Log(rss/n) + 2*pc,
		BIC:     n*math.Log(rss/n) + math.Log(n)*pc,
		Cp:      rss/sc.fullSigma2 + 2*pc - n,
	}

	adj := math.NaN()
	if sc.tss > 0 && sc.n-k-1 > 0 {
		adj = 1 - (rss/float64(sc.n-k-1))/(sc.tss/float64(sc.n-1))
	}
	cs.AdjR2 = adj

	pnames := sc.dm.PredictorNames()
	cs.Names = make([]string, k)
	for i, j := range cols {
		cs.Names[i] = pnames[j]
	}

	return cs
}

// searchBranchBound walks subsets depth first over an explicit stack.
func (s *Selector) searchBranchBound(sc *scorer, keep []*keeper, maxSize int, rslt *Result) error {

	q := s.dm.NumPredictors()
	stack := []node{{prefix: nil, next: 0, bound: math.Inf(-1)}}

	for len(stack) > 0 {
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Prune: the bound is the least RSS any completion of this
		// prefix can reach.  If no deeper size can still use it,
		// the subtree is dead.
		if !s.subtreeLive(nd, keep, maxSize) {
			continue
		}

		for j := nd.next; j < q; j++ {

			cols := make([]int, len(nd.prefix)+1)
			copy(cols, nd.prefix)
			cols[len(nd.prefix)] = j

			rss, ok, err := sc.fitRSS(cols)
			rslt.NumFits++
			if err != nil {
				return err
			}
			if !ok {
				rslt.Skipped++
				continue
			}

			k := len(cols)
			if rss <= keep[k-1].worst() {
				keep[k-1].offer(sc.score(cols, rss))
			}

			if k < maxSize && j+1 < q {
				// Bound for the subtree rooted at (cols, j+1):
				// the fit on cols plus everything remaining.
				wide := make([]int, 0, len(cols)+q-j-1)
				wide = append(wide, cols...)
				for r := j + 1; r < q; r++ {
					wide = append(wide, r)
				}
				bound, bok, err := sc.fitRSS(wide)
				rslt.NumFits++
				if err != nil {
					return err
				}
				if !bok {
					// A deficient wide fit bounds nothing;
					// descend unpruned.
					bound = math.Inf(-1)
				}
				stack = append(stack, node{prefix: cols, next: j + 1, bound: bound})
			}
		}
	}

	return nil
}

// subtreeLive reports whether any size reachable below the node could
// still admit a subset beating the retained ones.
func (s *Selector) subtreeLive(nd node, keep []*keeper, maxSize int) bool {

	if math.IsInf(nd.bound, -1) {
		return true
	}

	q := s.dm.NumPredictors()
	lo := len(nd.prefix) + 1
	hi := len(nd.prefix) + q - nd.next
	if hi > maxSize {
		hi = maxSize
	}

	// A tie on RSS is kept live so the lexicographic tie-break always
	// sees both candidates.
	for k := lo; k <= hi; k++ {
		if nd.bound <= keep[k-1].worst() {
			return true
		}
	}

	return false
}

// searchExhaustive enumerates every subset of every size, sizes in
// parallel.  Each size is an independent job with its own keeper; the
// merge is deterministic.
func (s *Selector) searchExhaustive(sc *scorer, keep []*keeper, maxSize int, rslt *Result) error {

	q := s.dm.NumPredictors()

	type sizeOut struct {
		fits    int
		skipped int
		err     error
	}
	out := make([]sizeOut, maxSize)

	var wg sync.WaitGroup
	for k := 1; k <= maxSize; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			for _, cols := range combin.Combinations(q, k) {
				rss, ok, err := sc.fitRSS(cols)
				out[k-1].fits++
				if err != nil {
					out[k-1].err = err
					return
				}
				if !ok {
					out[k-1].skipped++
					continue
				}
				if rss <= keep[k-1].worst() {
					keep[k-1].offer(sc.score(cols, rss))
				}
			}
		}(k)
	}
	wg.Wait()

	for _, o := range out {
		if o.err != nil {
			return o.err
		}
		rslt.NumFits += o.fits
		rslt.Skipped += o.skipped
	}

	return nil
}

// Summary returns a table of the retained subsets in ranked order.
func (r *Result) Summary() *lm.SummaryTable {

	var names []string
	ks := make([]int, len(r.Ranked))
	rss := make([]float64, len(r.Ranked))
	aic := make([]float64, len(r.Ranked))
	bic := make([]float64, len(r.Ranked))
	adj := make([]float64, len(r.Ranked))
	cp := make([]float64, len(r.Ranked))

	for i := range r.Ranked {
		cs := &r.Ranked[i]
		label := ""
		for j, na := range cs.Names {
			if j > 0 {
				label += "+"
			}
			label += na
		}
		names = append(names, label)
		ks[i] = cs.K
		rss[i] = cs.RSS
		aic[i] = cs.AIC
		bic[i] = cs.BIC
		adj[i] = cs.AdjR2
		cp[i] = cs.Cp
	}

	return &lm.SummaryTable{
		Title:    "Best subsets",
		ColNames: []string{"Model", "K", "RSS", "AIC", "BIC", "Adj R2", "Cp"},
		ColFmt: []lm.Fmter{lm.FmtString, lm.FmtInt, lm.FmtFloat, lm.FmtFloat,
			lm.FmtFloat, lm.FmtFloat, lm.FmtFloat},
		Cols: []interface{}{names, ks, rss, aic, bic, adj, cp},
		Top: []string{
			fmt.Sprintf("Subsets evaluated: %d", r.NumFits),
			fmt.Sprintf("Skipped: %d", r.Skipped),
		},
	}
}
