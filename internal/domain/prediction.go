package domain

import "context"

// Risk values follow the predictor wire contract.
const (
	RiskYes = "Oui"
	RiskNo  = "Non"
)

type Prediction struct {
	RiskOfDelay string         `json:"riskOfDelay"`
	DelayDays   int            `json:"delayDays"`
	Details     map[string]any `json:"details,omitempty"`
}

// AtRisk reports whether the predictor flagged a delay.
func (p Prediction) AtRisk() bool {
	return p.RiskOfDelay == RiskYes
}

type ProjectDelayPredictor interface {
	PredictProject(ctx context.Context, p *Project, tasks []*Task) (Prediction, error)
}

type TaskDelayPredictor interface {
	PredictTask(ctx context.Context, t *Task) (Prediction, error)
}
