package search

import (
	"sort"
)

// hit is one full-text match with its personal score attached.
type hit struct {
	itemID   int64
	text     float64
	personal float64
}

// fuseWeighted scores every hit as wText*text/maxText + wPersonal*personal
// and sorts best first; ties order by item id. Text relevance is scaled by
// the best text score so BM25 magnitudes stay comparable to personal scores.
func fuseWeighted(hits []hit, wText, wPersonal float64) []Result {
	var maxText float64
	for _, h := range hits {
		if h.text > maxText {
			maxText = h.text
		}
	}

	out := make([]Result, len(hits))
	for i, h := range hits {
		text := 0.0
		if maxText > 0 {
			text = h.text / maxText
		}
		out[i] = Result{ItemID: h.itemID, Score: wText*text + wPersonal*h.personal}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
