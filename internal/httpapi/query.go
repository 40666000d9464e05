package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type plotQuery struct {
	Attribute string `validate:"omitempty,oneof=elevation pressure flow quality"`
	Period    int    `validate:"gte=-1"`
	Format    string `validate:"omitempty,oneof=png svg"`
	Labels    bool
}

type seriesQuery struct {
	Kind    string   `validate:"omitempty,oneof=pressure velocity flow quality"`
	IDs     []string `validate:"max=64,dive,required,max=31"`
	Format  string   `validate:"omitempty,oneof=png svg"`
	Seconds bool
}

type hitQuery struct {
	X *float64 `validate:"required"`
	Y *float64 `validate:"required"`
}

func parsePlotQuery(v url.Values) (plotQuery, error) {
	q := plotQuery{
		Attribute: strings.ToLower(v.Get("attribute")),
		Format:    strings.ToLower(v.Get("format")),
	}
	var err error
	if q.Period, err = intParam(v, "period", 0); err != nil {
		return q, err
	}
	if q.Labels, err = boolParam(v, "labels"); err != nil {
		return q, err
	}
	return q, check(q)
}

func parseSeriesQuery(v url.Values) (seriesQuery, error) {
	q := seriesQuery{
		Kind:   strings.ToLower(v.Get("kind")),
		Format: strings.ToLower(v.Get("format")),
	}
	for _, raw := range v["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.IDs = append(q.IDs, id)
			}
		}
	}
	var err error
	if q.Seconds, err = boolParam(v, "seconds"); err != nil {
		return q, err
	}
	return q, check(q)
}

func parseHitQuery(v url.Values) (hitQuery, error) {
	var q hitQuery
	for name, dst := range map[string]**float64{"x": &q.X, "y": &q.Y} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("%s: not a number", name)
		}
		*dst = &f
	}
	return q, check(q)
}

func intParam(v url.Values, name string, def int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: not an integer", name)
	}
	return n, nil
}

func boolParam(v url.Values, name string) (bool, error) {
	raw := v.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: not a boolean", name)
	}
	return b, nil
}

// check runs struct validation and reports the first failure by field.
func check(q any) error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: parameter is required", field)
	case "oneof":
		return fmt.Errorf("%s: must be one of %s", field, e.Param())
	case "gte":
		return fmt.Errorf("%s: must be at least %s", field, e.Param())
	case "max":
		return fmt.Errorf("%s: must not exceed %s", field, e.Param())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
