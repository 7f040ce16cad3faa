package payout

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"go.uber.org/zap"
)

// TierReport is one row of a calibration report.
type TierReport struct {
	Name         string  `json:"name"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Weight       int64   `json:"weight"`
	Probability  float64 `json:"probability"` // within the base branch
	Mean         float64 `json:"mean"`
	Contribution float64 `json:"contribution"` // share of analytic RTP
}

// Report is a read-only view of a calibration for sanity logging. The RTP
// measured by simulation stays authoritative.
type Report struct {
	Target      float64      `json:"target_rtp"`
	Achieved    float64      `json:"achieved_rtp"`
	Continuous  float64      `json:"continuous_rtp"`
	Delta       float64      `json:"delta"`
	Within      bool         `json:"within_tolerance"`
	Tolerance   float64      `json:"tolerance"`
	Status      Status       `json:"status"`
	Passes      int          `json:"passes"`
	TotalWeight int64        `json:"total_weight"`
	WincapShare float64      `json:"wincap_contribution"`
	Tiers       []TierReport `json:"tiers"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// NewReport summarizes c. tolerance <= 0 means DefaultRTPTolerance.
func NewReport(c *Calibration, q Quotas, wincap, tolerance float64) Report {
	if tolerance <= 0 {
		tolerance = DefaultRTPTolerance
	}
	r := Report{
		Target:      c.Target,
		Achieved:    c.Achieved,
		Continuous:  c.Continuous,
		Delta:       c.Delta(),
		Tolerance:   tolerance,
		Status:      c.Status,
		Passes:      c.Passes,
		TotalWeight: c.TotalWeight,
		WincapShare: q.Wincap * wincap,
	}
	r.Within = math.Abs(r.Delta) <= tolerance
	if c.Table != nil {
		w := float64(c.Table.TotalWeight())
		for _, tr := range c.Table.tiers {
			row := TierReport{Name: tr.Name, Min: tr.Min, Max: tr.Max, Weight: tr.Weight, Mean: tr.Mean()}
			if w > 0 {
				row.Probability = float64(tr.Weight) / w
				row.Contribution = q.Base * row.Probability * row.Mean
			}
			r.Tiers = append(r.Tiers, row)
		}
	}
	for _, err := range c.Warnings {
		r.Warnings = append(r.Warnings, err.Error())
	}
	return r
}

// Fields flattens the headline numbers for a structured log line.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.Float64("target_rtp", r.Target),
		zap.Float64("achieved_rtp", r.Achieved),
		zap.Float64("continuous_rtp", r.Continuous),
		zap.Float64("delta", r.Delta),
		zap.Bool("within_tolerance", r.Within),
		zap.String("status", string(r.Status)),
		zap.Int("passes", r.Passes),
		zap.Int64("total_weight", r.TotalWeight),
		zap.Int("tiers", len(r.Tiers)),
		zap.Strings("warnings", r.Warnings),
	}
}

// Write prints the report as an aligned table.
func (r Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "tier\tmin\tmax\tweight\tprob\tmean\trtp\t\n")
	for _, row := range r.Tiers {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%d\t%.6f\t%g\t%.6f\t\n",
			row.Name, row.Min, row.Max, row.Weight, row.Probability, row.Mean, row.Contribution)
	}
	fmt.Fprintf(tw, "wincap\t\t\t\t\t\t%.6f\t\n", r.WincapShare)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "target %.6f achieved %.6f delta %+.6f status %s\n",
		r.Target, r.Achieved, r.Delta, r.Status)
	if err != nil {
		return err
	}
	for _, warning := range r.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}
