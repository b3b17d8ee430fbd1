package models

import "testing"

func TestTimeUntilDryFromMinutes(t *testing.T) {
	cases := []struct {
		minutes float64
		want    TimeUntilDry
	}{
		{0, TimeUntilDry{0, 0}},
		{59, TimeUntilDry{0, 1}},
		{90, TimeUntilDry{0, 2}},  // 1.5h rounds half to even
		{150, TimeUntilDry{0, 2}}, // 2.5h rounds half to even
		{1440, TimeUntilDry{1, 0}},
		{1440 + 125, TimeUntilDry{1, 2}},
		{2*1440 - 10, TimeUntilDry{2, 0}}, // 23h50m rolls over
	}
	for _, c := range cases {
		if got := TimeUntilDryFromMinutes(c.minutes); got != c.want {
			t.Fatalf("minutes=%v: got %+v want %+v", c.minutes, got, c.want)
		}
	}
}

func TestTimeUntilDryNeverNegative(t *testing.T) {
	got := TimeUntilDryFromMinutes(-30)
	if got.Days != 0 || got.Hours != 0 {
		t.Fatalf("unexpected negative conversion: %+v", got)
	}
}

func TestMeasurementLabelState(t *testing.T) {
	m := NewMeasurement(1, 20, 21, testTime)
	if m.IsLabeled() {
		t.Fatal("new measurement must start unlabeled")
	}
	m.MinutesUntilDry = 0
	if !m.IsLabeled() {
		t.Fatal("zero minutes is a valid label")
	}
}
