package series

import "strconv"

// Row is one line of the latest-values table.
type Row struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Table returns the latest values in display order. Unset values render as
// an empty string; set values carry their unit suffix.
func (s *Store) Table() []Row {
	return []Row{
		{Name: "Current", Value: s.latestText(Current, "")},
		{Name: "Deviation current", Value: s.latestText(DeviationCurrent, "Hz")},
		{Name: "Deviation accumulated", Value: s.latestText(DeviationAccumulated, "Hz")},
		{Name: "DAC1", Value: s.scalarText(DAC1)},
		{Name: "DAC2", Value: s.scalarText(DAC2)},
		{Name: "Deviation", Value: s.latestText(DeviationPPB, "ppb")},
	}
}

func (s *Store) latestText(m Metric, unit string) string {
	smp, ok := s.Latest(m)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(smp.Value, 'f', -1, 64) + unit
}

func (s *Store) scalarText(sc Scalar) string {
	v, ok := s.Scalar(sc)
	if !ok {
		return ""
	}
	return strconv.FormatUint(uint64(v), 10)
}
