package meta

import (
	"encoding/json"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
)

// Rollout is stamped onto the candidate Deployment so that a controller
// restart, or an operator reset, can recover what the candidate belongs to.
type Rollout struct {
	ID             string         `json:"id"`
	WorkloadName   string         `json:"workload_name"`
	Strategy       model.Strategy `json:"strategy"`
	CanaryWeight   int32          `json:"canary_weight"`
	CandidateImage string         `json:"candidate_image"`
}

func (r *Rollout) Key() string {
	return consts.AnnotationKeyRollout
}

// Snapshot is stamped onto snapshot ConfigMaps.
type Snapshot struct {
	WorkloadName string `json:"workload_name"`
	TakenUnix    int64  `json:"taken_unix"`
}

func (s *Snapshot) Key() string {
	return consts.AnnotationKeySnapshot
}

type Annotation interface {
	Key() string
}

func ToMap(a Annotation) map[string]string {
	b, err := json.Marshal(a)
	if err != nil {
		return map[string]string{}
	}
	return map[string]string{a.Key(): string(b)}
}

func FromMap(m map[string]string, a Annotation) error {
	v, ok := m[a.Key()]
	if !ok {
		return except.NewError("annotation %s is not set", except.ErrNotFound, a.Key())
	}
	return json.Unmarshal([]byte(v), a)
}

func Merge(m map[string]string, a Annotation) map[string]string {
	return MergeMaps(m, ToMap(a))
}

func MergeMaps(m1, m2 map[string]string) map[string]string {
	out := map[string]string{}

	for k, v := range m1 {
		out[k] = v
	}

	for k, v := range m2 {
		out[k] = v
	}

	return out
}
