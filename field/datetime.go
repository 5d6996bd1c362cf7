package field

import (
	"strconv"
	"strings"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Date-decomposed and nested fields index every component prefix of a value
// under a per-depth subfield. A query for year 1850 is then a single term
// lookup on the year subfield, never an enumeration of days.

var dateTimeDepths = []string{"Y", "Y-m", "Y-m-d", "Y-m-d-H", "Y-m-d-H-M", "Y-m-d-H-M-S"}

// SubField returns the derived field name that holds terms of the given
// component depth.
func (f *Field) SubField(depth int) string {
	if f.Kind == KindDateTime && depth >= 1 && depth <= len(dateTimeDepths) {
		return f.Name + ":" + dateTimeDepths[depth-1]
	}
	return f.Name + ":" + strconv.Itoa(depth)
}

// Components splits a rendered value into its depth components.
func (f *Field) Components(text string) ([]string, error) {
	switch f.Kind {
	case KindDateTime:
		var comps []string
		parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
		for _, c := range strings.Split(parts[0], "-") {
			if c != "" {
				comps = append(comps, c)
			}
		}
		if len(parts) == 2 {
			for _, c := range strings.Split(parts[1], ":") {
				if c != "" {
					comps = append(comps, c)
				}
			}
		}
		if len(comps) == 0 || len(comps) > len(dateTimeDepths) {
			return nil, scerrors.Newf("field", "", scerrors.ErrInvalidValue,
				"field %q: unparseable datetime %q", f.Name, text)
		}
		return comps, nil
	case KindNested:
		comps := strings.Split(text, f.Separator)
		if len(comps) == 0 {
			return nil, scerrors.Newf("field", "", scerrors.ErrInvalidValue,
				"field %q: empty nested value", f.Name)
		}
		return comps, nil
	default:
		return []string{text}, nil
	}
}

// JoinComponents renders components back to term text for their depth.
func (f *Field) JoinComponents(comps []string) string {
	if f.Kind == KindDateTime {
		date := comps
		var clock []string
		if len(comps) > 3 {
			date, clock = comps[:3], comps[3:]
		}
		text := strings.Join(date, "-")
		if len(clock) > 0 {
			text += " " + strings.Join(clock, ":")
		}
		return text
	}
	return strings.Join(comps, f.Separator)
}

// PrefixOf returns the deepest subfield and term matching every value that
// starts with the given component prefix, e.g. "1850" or "1850-03".
func (f *Field) PrefixOf(value string) (name, term string, err error) {
	comps, err := f.Components(value)
	if err != nil {
		return "", "", err
	}
	return f.SubField(len(comps)), f.JoinComponents(comps), nil
}

// RangeOf returns the subfield and bounds for a component range query. The
// depth is the deeper of the two bounds; a shorter bound still orders
// correctly because the separator sorts below the component alphabet.
func (f *Field) RangeOf(start, stop string) (name, lo, hi string, err error) {
	startComps, err := f.Components(start)
	if err != nil {
		return "", "", "", err
	}
	stopComps, err := f.Components(stop)
	if err != nil {
		return "", "", "", err
	}
	depth := len(startComps)
	if len(stopComps) > depth {
		depth = len(stopComps)
	}
	return f.SubField(depth), f.JoinComponents(startComps), f.JoinComponents(stopComps), nil
}
