package schedule_test

import (
	"testing"
	"time"

	"github.com/langboard/engine/schedule"
)

func TestNormalizeZeroOffsetIsIdentity(t *testing.T) {
	cases := []string{
		"0 9 * * *",
		"*/15 * * * *",
		"0,30 8-17 * * 1-5",
		"5 0 1 * *",
	}
	for _, c := range cases {
		got, err := schedule.Normalize(c, 0)
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if got != c {
			t.Fatalf("Normalize(%q, 0) = %q, want identity", c, got)
		}
	}
}

func TestNormalizeInverseRoundTrip(t *testing.T) {
	cases := []struct {
		cron   string
		offset int
	}{
		{"0 9 * * *", -300},
		{"30 14 * * *", 330},
		{"0 0 * * *", -300},
		{"15 6 * * 1", 60},
	}
	for _, tc := range cases {
		utc, err := schedule.Normalize(tc.cron, tc.offset)
		if err != nil {
			t.Fatalf("%s: %v", tc.cron, err)
		}
		back, err := schedule.Normalize(utc, -tc.offset)
		if err != nil {
			t.Fatalf("%s (inverse): %v", utc, err)
		}
		if back != tc.cron {
			t.Fatalf("inverse of Normalize(%q, %d) = %q via %q, want original",
				tc.cron, tc.offset, back, utc)
		}
	}
}

func TestNormalizeDailySpecialAtMinusFive(t *testing.T) {
	got, err := schedule.Normalize("@daily", -300)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0 5 * * *" {
		t.Fatalf("@daily at -5:00 = %q, want %q", got, "0 5 * * *")
	}
}

func TestNormalizeRebootPassthrough(t *testing.T) {
	got, err := schedule.Normalize("@reboot", -300)
	if err != nil {
		t.Fatal(err)
	}
	if got != "@reboot" {
		t.Fatalf("@reboot must pass through unchanged, got %q", got)
	}
}

func TestNormalizeStepAtHalfHourOffset(t *testing.T) {
	// */15 at +00:30: the fired minute set {0,15,30,45} maps onto itself,
	// so the field and the adjacent hour are unchanged.
	got, err := schedule.Normalize("*/15 * * * *", 30)
	if err != nil {
		t.Fatal(err)
	}
	if got != "*/15 * * * *" {
		t.Fatalf("*/15 at +00:30 = %q, want unchanged", got)
	}
}

func TestNormalizeMinuteBorrowCarriesIntoHour(t *testing.T) {
	// Local 00:00 at +05:30 is 18:30 UTC the previous day.
	got, err := schedule.Normalize("0 0 * * *", 330)
	if err != nil {
		t.Fatal(err)
	}
	if got != "30 18 * * *" {
		t.Fatalf("0 0 at +05:30 = %q, want %q", got, "30 18 * * *")
	}
}

func TestNormalizeHourList(t *testing.T) {
	got, err := schedule.Normalize("0 8,12,16 * * *", -300)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0 13,17,21 * * *" {
		t.Fatalf("hour list at -5:00 = %q", got)
	}
}

func TestNormalizeHourRange(t *testing.T) {
	got, err := schedule.Normalize("0 9-17 * * *", -120)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0 11-19 * * *" {
		t.Fatalf("hour range at -2:00 = %q", got)
	}
}

func TestNormalizeWrappingRangeExpands(t *testing.T) {
	// 20-23 shifted +3 wraps midnight and collapses to a value list.
	got, err := schedule.Normalize("0 20-23 * * *", -180)
	if err != nil {
		t.Fatal(err)
	}
	if got != "0 0,1,2,23 * * *" {
		t.Fatalf("wrapping hour range = %q, want %q", got, "0 0,1,2,23 * * *")
	}
}

func TestNormalizeBadFieldCount(t *testing.T) {
	if _, err := schedule.Normalize("0 9 * *", 0); err == nil {
		t.Fatal("expected error for 4-field cron")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	a, err := schedule.Normalize("45 23 * * 5", -480)
	if err != nil {
		t.Fatal(err)
	}
	b, err := schedule.Normalize("45 23 * * 5", -480)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("normalisation not deterministic: %q vs %q", a, b)
	}
}

func TestZoneOffsetFixed(t *testing.T) {
	cases := []struct {
		tz   string
		want int
	}{
		{"UTC", 0},
		{"", 0},
		{"+05:30", 330},
		{"-04:00", -240},
		{"+1", 60},
	}
	for _, tc := range cases {
		got, err := schedule.ZoneOffset(tc.tz, time.Now())
		if err != nil {
			t.Fatalf("%q: %v", tc.tz, err)
		}
		if got != tc.want {
			t.Fatalf("ZoneOffset(%q) = %d, want %d", tc.tz, got, tc.want)
		}
	}
}

func TestZoneOffsetIANAFollowsDST(t *testing.T) {
	winter := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	w, err := schedule.ZoneOffset("America/New_York", winter)
	if err != nil {
		t.Skip("tzdata unavailable:", err)
	}
	s, err := schedule.ZoneOffset("America/New_York", summer)
	if err != nil {
		t.Fatal(err)
	}
	if w != -300 || s != -240 {
		t.Fatalf("New York offsets = (%d, %d), want (-300, -240)", w, s)
	}

	// 9 AM New York maps to 14:00 UTC in winter, 13:00 UTC in summer.
	gotW, err := schedule.NormalizeAt("0 9 * * *", "America/New_York", winter)
	if err != nil {
		t.Fatal(err)
	}
	gotS, err := schedule.NormalizeAt("0 9 * * *", "America/New_York", summer)
	if err != nil {
		t.Fatal(err)
	}
	if gotW != "0 14 * * *" || gotS != "0 13 * * *" {
		t.Fatalf("New York 9 AM = (%q, %q), want (0 14, 0 13)", gotW, gotS)
	}
}

func TestZoneOffsetUnknownZone(t *testing.T) {
	if _, err := schedule.ZoneOffset("Mars/Olympus_Mons", time.Now()); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
