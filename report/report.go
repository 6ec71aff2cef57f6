// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package report

import (
	"io"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/danielhkuo/mrpcast/models"
)

// DefaultTop is how many areas are listed at each end.
const DefaultTop = 5

type Options struct {
	Top      int
	Language language.Tag
}

// Write prints a human-readable summary of a run.
func Write(w io.Writer, snap *models.RunSnapshot, opts Options) error {
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	if opts.Language == language.Und {
		opts.Language = language.BritishEnglish
	}
	p := message.NewPrinter(opts.Language)
	pw := &printer{p: p, w: w}

	est := snap.Estimate
	pw.printf("Run %s (%s, %s)\n", snap.ID, snap.Variant, snap.TargetParty)
	pw.printf("Respondents: %d   Chains: %d x %d (%d warm-up)   Seed: %d\n",
		snap.Respondents, snap.Chains, snap.Iterations, snap.Warmup, snap.Seed)
	if snap.WorstParam != "" {
		pw.printf("Worst R-hat: %.3f (%s)\n", snap.WorstRhat, snap.WorstParam)
	}
	pw.printf("National share: %s [%s, %s] (%.0f%% interval, %d draws)\n",
		pct(p, est.National.Mean), pct(p, est.National.Lower), pct(p, est.National.Upper),
		est.Interval*100, est.Draws)

	if v := snap.Validation; v != nil {
		pw.printf("\nValidation (%d areas, %d dropped)\n", v.Areas, v.DroppedAreas)
		pw.printf("  Bias %+.1f pts   RMSE %.1f pts   MAE %.1f pts\n", v.Bias*100, v.RMSE*100, v.MAE*100)
		if v.Correlation != nil {
			pw.printf("  Correlation %.3f\n", *v.Correlation)
		} else {
			pw.printf("  Correlation undefined\n")
		}
		if v.CalibrationSlope != nil {
			pw.printf("  Calibration observed = %.3f + %.3f x predicted\n", *v.CalibrationIntercept, *v.CalibrationSlope)
		}
	}

	areas := append([]models.AreaEstimate(nil), est.Areas...)
	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].Summary.Mean > areas[j].Summary.Mean
	})
	n := min(opts.Top, len(areas))
	if n > 0 {
		pw.printf("\nHighest\n")
		for _, a := range areas[:n] {
			pw.area(a, snap.Observed)
		}
		pw.printf("\nLowest\n")
		for i := len(areas) - 1; i >= len(areas)-n; i-- {
			pw.area(areas[i], snap.Observed)
		}
	}
	return pw.err
}

// printer keeps the first write error.
type printer struct {
	p   *message.Printer
	w   io.Writer
	err error
}

func (pw *printer) printf(format string, args ...any) {
	if pw.err != nil {
		return
	}
	_, pw.err = pw.p.Fprintf(pw.w, format, args...)
}

func (pw *printer) area(a models.AreaEstimate, observed map[string]float64) {
	line := pct(pw.p, a.Summary.Mean) + " [" + pct(pw.p, a.Summary.Lower) + ", " + pct(pw.p, a.Summary.Upper) + "]"
	if obs, ok := observed[a.Area]; ok {
		line += "  observed " + pct(pw.p, obs)
	}
	pw.printf("  %-10s %s\n", a.Area, line)
}

func pct(p *message.Printer, share float64) string {
	return p.Sprintf("%.1f%%", share*100)
}
