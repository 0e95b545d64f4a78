package model

// PairSample is one (user, product, label) training sample in the wire
// format the training platform consumes: {"in0": ..., "in1": ..., "label": ...}.
type PairSample struct {
	UserID    string  `json:"in0"`
	ProductID string  `json:"in1"`
	Label     float64 `json:"label"`
}
