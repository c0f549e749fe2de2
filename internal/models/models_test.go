package models

import (
	"encoding/json"
	"testing"
)

func TestOptional_MarshalJSON(t *testing.T) {
	type row struct {
		Delay Optional[float64] `json:"delay"`
	}
	tests := []struct {
		name string
		in   row
		want string
	}{
		{name: "known", in: row{Delay: Some(12.5)}, want: `{"delay":12.5}`},
		{name: "unknown", in: row{Delay: None[float64]()}, want: `{"delay":null}`},
		{name: "zero value is unknown", in: row{}, want: `{"delay":null}`},
		{name: "known zero", in: row{Delay: Some(0.0)}, want: `{"delay":0}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := json.Marshal(tc.in)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("Marshal() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestOptional_UnmarshalJSON(t *testing.T) {
	var o Optional[int]
	if err := json.Unmarshal([]byte("null"), &o); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if o.Valid {
		t.Error("Unmarshal(null).Valid = true, want false")
	}
	if err := json.Unmarshal([]byte("1430"), &o); err != nil {
		t.Fatalf("Unmarshal(1430) error = %v", err)
	}
	if v, ok := o.Get(); !ok || v != 1430 {
		t.Errorf("Unmarshal(1430) = (%v, %v), want (1430, true)", v, ok)
	}
}

func TestOptional_OrElse(t *testing.T) {
	if got := None[int]().OrElse(7); got != 7 {
		t.Errorf("None.OrElse(7) = %d, want 7", got)
	}
	if got := Some(3).OrElse(7); got != 3 {
		t.Errorf("Some(3).OrElse(7) = %d, want 3", got)
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2023-02-28")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if d != NewDate(2023, 2, 28) {
		t.Fatalf("ParseDate() = %v, want 2023-02-28", d)
	}
	if got := d.AddDays(1).String(); got != "2023-03-01" {
		t.Errorf("AddDays(1) = %s, want 2023-03-01", got)
	}
	if NewDate(2023, 2, 29).IsValid() {
		t.Error("2023-02-29 IsValid() = true, want false")
	}
	if !NewDate(2024, 2, 29).IsValid() {
		t.Error("2024-02-29 IsValid() = false, want true")
	}
	if _, err := ParseDate("2023-13-01"); err == nil {
		t.Error("ParseDate(2023-13-01) error = nil, want error")
	}
}

func TestWeatherObservation_Time(t *testing.T) {
	w := WeatherObservation{Date: NewDate(2023, 1, 1), Hour: 14}
	if got := w.Time().Format("2006-01-02 15:04"); got != "2023-01-01 14:00" {
		t.Errorf("Time() = %s, want 2023-01-01 14:00", got)
	}
}
