package factory

import (
	"fmt"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
)

func CandidateName(workloadName string) string {
	return fmt.Sprintf("%s-candidate", workloadName)
}

func CanaryIngressName(stableIngressName string) string {
	return fmt.Sprintf("%s-ramp-canary", stableIngressName)
}

// GenCandidateLabels are the full pod labels of a candidate. They deliberately
// share nothing with the stable selector so stable Services never pick up
// candidate pods.
func GenCandidateLabels(workloadName string) map[string]string {
	return map[string]string{
		consts.LabelKeyResource:  consts.LabelValueResourceCandidate,
		consts.LabelKeyCandidate: workloadName,
	}
}

func WorkloadNameFromLabels(l map[string]string) (string, error) {
	if v, ok := l[consts.LabelKeyCandidate]; ok {
		return v, nil
	}
	return "", except.NewError("missing the %s label", except.ErrInvalid, consts.LabelKeyCandidate)
}
