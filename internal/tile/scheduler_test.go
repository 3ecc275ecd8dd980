package tile

import (
	"errors"
	"reflect"
	"testing"
)

func TestScheduleSingleTileCoversCanvas(t *testing.T) {
	plan, err := Schedule(512, 512, 512, 8, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if plan.Psize != 512 || plan.Step != 496 {
		t.Fatalf("expected psize 512 step 496, got psize %d step %d", plan.Psize, plan.Step)
	}
	want := []Window{{Y0: 0, X0: 0, Y1: 512, X1: 512}}
	if !reflect.DeepEqual(plan.Windows, want) {
		t.Fatalf("expected %v, got %v", want, plan.Windows)
	}
	if plan.Count() != 1 {
		t.Fatalf("expected one tile, got %d", plan.Count())
	}
}

func TestScheduleSnapsFinalTile(t *testing.T) {
	plan, err := Schedule(530, 530, 512, 16, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if plan.Step != 480 {
		t.Fatalf("expected step 480, got %d", plan.Step)
	}
	want := []Window{
		{Y0: 0, X0: 0, Y1: 512, X1: 512},
		{Y0: 0, X0: 18, Y1: 512, X1: 530},
		{Y0: 18, X0: 0, Y1: 530, X1: 512},
		{Y0: 18, X0: 18, Y1: 530, X1: 530},
	}
	if !reflect.DeepEqual(plan.Windows, want) {
		t.Fatalf("expected %v, got %v", want, plan.Windows)
	}
}

func TestScheduleClipsAndEvensTileSize(t *testing.T) {
	plan, err := Schedule(100, 100, 99, 8, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if plan.Psize != 98 {
		t.Fatalf("expected odd tile size to round down to 98, got %d", plan.Psize)
	}
	if plan.Step != 82 {
		t.Fatalf("expected step 82, got %d", plan.Step)
	}
	// Second start per axis overruns and pulls back to end at 100.
	wantStarts := []Window{
		{Y0: 0, X0: 0, Y1: 98, X1: 98},
		{Y0: 0, X0: 2, Y1: 98, X1: 100},
		{Y0: 2, X0: 0, Y1: 100, X1: 98},
		{Y0: 2, X0: 2, Y1: 100, X1: 100},
	}
	if !reflect.DeepEqual(plan.Windows, wantStarts) {
		t.Fatalf("expected %v, got %v", wantStarts, plan.Windows)
	}
}

func TestScheduleDegenerateTile(t *testing.T) {
	if _, err := Schedule(100, 100, 64, 32, 2); !errors.Is(err, ErrDegenerateTile) {
		t.Fatalf("expected ErrDegenerateTile, got %v", err)
	}
	if _, err := Schedule(100, 100, 64, 40, 2); !errors.Is(err, ErrDegenerateTile) {
		t.Fatalf("expected ErrDegenerateTile for negative step, got %v", err)
	}
}

func TestScheduleInteriorCoverage(t *testing.T) {
	cases := []struct {
		name         string
		dim, psize   int
		margin, snap int
	}{
		{"even stride", 120, 64, 8, 2},
		{"snapped tail", 530, 512, 16, 2},
		{"period six", 120, 64, 12, 6},
		{"exact fit", 512, 512, 8, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dim%tc.snap != 0 {
				t.Fatalf("test case dimension %d not aligned to snap %d", tc.dim, tc.snap)
			}
			plan, err := Schedule(tc.dim, tc.dim, tc.psize, tc.margin, tc.snap)
			if err != nil {
				t.Fatalf("schedule failed: %v", err)
			}
			covered := make([]int, tc.dim)
			for _, win := range plan.Windows {
				if win.Y0 != plan.Windows[0].Y0 {
					continue // coverage is separable; inspect the first row band
				}
				for x := win.X0 + tc.margin; x < win.X1-tc.margin; x++ {
					covered[x]++
				}
			}
			for x := 0; x < tc.dim; x++ {
				inside := x >= tc.margin && x < tc.dim-tc.margin
				if inside && covered[x] == 0 {
					t.Fatalf("interior column %d never covered", x)
				}
				if !inside && covered[x] != 0 {
					t.Fatalf("border column %d written %d times", x, covered[x])
				}
			}
		})
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	first, err := Schedule(530, 470, 256, 12, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	second, err := Schedule(530, 470, 256, 12, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different plans")
	}
}

func TestScheduleRowMajorOrder(t *testing.T) {
	plan, err := Schedule(200, 200, 128, 8, 2)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	for i := 1; i < len(plan.Windows); i++ {
		prev, cur := plan.Windows[i-1], plan.Windows[i]
		if cur.Y0 < prev.Y0 {
			t.Fatalf("window %d out of row order: %v after %v", i, cur, prev)
		}
		if cur.Y0 == prev.Y0 && cur.X0 <= prev.X0 {
			t.Fatalf("window %d out of column order: %v after %v", i, cur, prev)
		}
	}
}
