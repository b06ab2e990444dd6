package backtest

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/newthinker/quantlens/internal/core"
)

// Model strategies understood by the backtest service.
var ModelStrategies = []string{"Random Forest", "MLP", "XGBoost"}

// Parameters configures one backtest run.
type Parameters struct {
	TopK           int     `json:"top_k"`
	InitialCapital float64 `json:"initial_capital"`
	SellThreshold  float64 `json:"sell_threshold"`
	StartPeriod    string  `json:"start_period"`
	EndPeriod      string  `json:"end_period"`
	RandomSeed     int     `json:"random_seed"`
	ModelStrategy  string  `json:"model_strategy,omitempty"`
}

// Validate checks type and range constraints. Every violation is reported;
// the returned error matches core.ErrValidation.
func (p Parameters) Validate() error {
	var problems []error

	if p.TopK <= 0 {
		problems = append(problems, fmt.Errorf("topK must be greater than 0, got %d", p.TopK))
	}
	if !(p.InitialCapital > 0) {
		problems = append(problems, fmt.Errorf("initialCapital must be greater than 0, got %v", p.InitialCapital))
	}
	if !(p.SellThreshold >= 0 && p.SellThreshold <= 1) {
		problems = append(problems, fmt.Errorf("sellThreshold must be between 0 and 1, got %v", p.SellThreshold))
	}
	if p.ModelStrategy != "" && !knownModel(p.ModelStrategy) {
		problems = append(problems, fmt.Errorf("modelStrategy must be one of %s, got %q",
			strings.Join(ModelStrategies, ", "), p.ModelStrategy))
	}

	start, startErr := ParsePeriod(p.StartPeriod)
	if startErr != nil {
		problems = append(problems, fmt.Errorf("startPeriod: %w", startErr))
	}
	end, endErr := ParsePeriod(p.EndPeriod)
	if endErr != nil {
		problems = append(problems, fmt.Errorf("endPeriod: %w", endErr))
	}
	if startErr == nil && endErr == nil && end.Compare(start) < 0 {
		problems = append(problems, fmt.Errorf("endPeriod %s is before startPeriod %s", end, start))
	}

	if len(problems) > 0 {
		return core.WrapError(core.ErrValidation, errors.Join(problems...))
	}
	return nil
}

// Query serializes the parameters as collaborator query values. Numbers are
// plain decimals without grouping.
func (p Parameters) Query() url.Values {
	q := url.Values{}
	q.Set("topK", strconv.Itoa(p.TopK))
	q.Set("initialCapital", strconv.FormatFloat(p.InitialCapital, 'f', -1, 64))
	q.Set("sellThreshold", strconv.FormatFloat(p.SellThreshold, 'f', -1, 64))
	q.Set("startPeriod", p.StartPeriod)
	q.Set("endPeriod", p.EndPeriod)
	q.Set("randomSeed", strconv.Itoa(p.RandomSeed))
	if p.ModelStrategy != "" {
		q.Set("modelStrategy", p.ModelStrategy)
	}
	return q
}

// ParseParameters reads form values using the same keys Query writes.
// Fields that fail to parse are reported as validation errors; fields that
// parse are then range-checked by Validate.
func ParseParameters(values url.Values) (Parameters, error) {
	var (
		p        Parameters
		problems []error
		err      error
	)

	if p.TopK, err = strconv.Atoi(strings.TrimSpace(values.Get("topK"))); err != nil {
		problems = append(problems, fmt.Errorf("topK must be an integer"))
	}
	if p.InitialCapital, err = strconv.ParseFloat(strings.TrimSpace(values.Get("initialCapital")), 64); err != nil {
		problems = append(problems, fmt.Errorf("initialCapital must be a number"))
	}
	if p.SellThreshold, err = strconv.ParseFloat(strings.TrimSpace(values.Get("sellThreshold")), 64); err != nil {
		problems = append(problems, fmt.Errorf("sellThreshold must be a number"))
	}
	if p.RandomSeed, err = strconv.Atoi(strings.TrimSpace(values.Get("randomSeed"))); err != nil {
		problems = append(problems, fmt.Errorf("randomSeed must be an integer"))
	}
	p.StartPeriod = strings.TrimSpace(values.Get("startPeriod"))
	p.EndPeriod = strings.TrimSpace(values.Get("endPeriod"))
	p.ModelStrategy = strings.TrimSpace(values.Get("modelStrategy"))

	if len(problems) > 0 {
		return p, core.WrapError(core.ErrValidation, errors.Join(problems...))
	}
	return p, p.Validate()
}

// Periods lists every quarter from start to end inclusive.
func Periods(start, end Period) []Period {
	var out []Period
	for p := start; p.Compare(end) <= 0; p = p.Next() {
		out = append(out, p)
	}
	return out
}

func knownModel(name string) bool {
	for _, m := range ModelStrategies {
		if m == name {
			return true
		}
	}
	return false
}
