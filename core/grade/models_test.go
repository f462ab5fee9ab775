package grade

import (
	"testing"

	"github.com/volatiletech/null/v8"
)

func TestGrade_UpdateFinalRating(t *testing.T) {
	tests := []struct {
		name                   string
		prelim, midterm, final null.Float64
		wantRating             null.Float64
		wantRemarks            string
	}{
		{
			name:   "incomplete components leave the rating unset",
			prelim: null.Float64From(90), midterm: null.Float64From(85),
		},
		{
			name:   "weighted 30/30/40 rounded to 2 decimals",
			prelim: null.Float64From(85.55), midterm: null.Float64From(90.25), final: null.Float64From(88.1),
			wantRating:  null.Float64From(87.98),
			wantRemarks: RemarksPassed,
		},
		{
			name:   "exactly 75 passes",
			prelim: null.Float64From(75), midterm: null.Float64From(75), final: null.Float64From(75),
			wantRating:  null.Float64From(75),
			wantRemarks: RemarksPassed,
		},
		{
			name:   "below 75 fails",
			prelim: null.Float64From(74), midterm: null.Float64From(75), final: null.Float64From(75),
			wantRating:  null.Float64From(74.7),
			wantRemarks: RemarksFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grade{PrelimGrade: tt.prelim, MidtermGrade: tt.midterm, FinalGrade: tt.final}
			g.UpdateFinalRating()

			if g.FinalRating.Valid != tt.wantRating.Valid {
				t.Fatalf("FinalRating.Valid = %v; want %v", g.FinalRating.Valid, tt.wantRating.Valid)
			}
			if g.FinalRating.Valid && g.FinalRating.Float64 != tt.wantRating.Float64 {
				t.Errorf("FinalRating = %v; want %v", g.FinalRating.Float64, tt.wantRating.Float64)
			}
			if g.Remarks != tt.wantRemarks {
				t.Errorf("Remarks = %q; want %q", g.Remarks, tt.wantRemarks)
			}
		})
	}
}

func TestGrade_LetterGrade(t *testing.T) {
	tests := []struct {
		rating null.Float64
		want   string
	}{
		{null.Float64{}, ""},
		{null.Float64From(97), "A+"},
		{null.Float64From(95), "A+"},
		{null.Float64From(92), "A"},
		{null.Float64From(87.5), "B+"},
		{null.Float64From(82), "B"},
		{null.Float64From(75), "C+"},
		{null.Float64From(72), "C"},
		{null.Float64From(67), "D"},
		{null.Float64From(50), "F"},
	}
	for _, tt := range tests {
		g := Grade{FinalRating: tt.rating}
		if got := g.LetterGrade(); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q; want %q", tt.rating, got, tt.want)
		}
	}
}

func TestGrade_Snapshot_decimals(t *testing.T) {
	g := Grade{
		ID:          1,
		PrelimGrade: null.Float64From(85.5),
		FinalRating: null.Float64From(90),
	}
	s := g.Snapshot()

	if got := s["prelim_grade"]; got != "85.50" {
		t.Errorf("prelim_grade = %v; want \"85.50\"", got)
	}
	if got := s["final_rating"]; got != "90.00" {
		t.Errorf("final_rating = %v; want \"90.00\"", got)
	}
	if got := s["midterm_grade"]; got != nil {
		t.Errorf("midterm_grade = %v; want null", got)
	}
}
