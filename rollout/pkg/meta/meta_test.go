package meta

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
)

type MetaTestSuite struct {
	suite.Suite
}

func (m *MetaTestSuite) TestRolloutRoundTrip() {
	// -- Given
	//
	given := &Rollout{
		ID:             "b7ffa5a6-23ab-4c2e-a3b2-2f0bd3a2a85f",
		WorkloadName:   "echo-server",
		Strategy:       model.StrategyCanary,
		CanaryWeight:   25,
		CandidateImage: "echo-server:v2",
	}

	// -- When
	//
	annotations := ToMap(given)
	actual := new(Rollout)
	err := FromMap(annotations, actual)

	// -- Then
	//
	if m.NoError(err) {
		m.Equal(given, actual)
	}
	m.Contains(annotations, consts.AnnotationKeyRollout)
}

func (m *MetaTestSuite) TestSnapshotRoundTrip() {
	// -- Given
	//
	given := &Snapshot{
		WorkloadName: "echo-server",
		TakenUnix:    1700000000,
	}

	// -- When
	//
	annotations := ToMap(given)
	actual := new(Snapshot)
	err := FromMap(annotations, actual)

	// -- Then
	//
	if m.NoError(err) {
		m.Equal(given, actual)
	}
}

func (m *MetaTestSuite) TestFromMapMissingAnnotation() {
	// -- When
	//
	err := FromMap(map[string]string{}, new(Rollout))

	// -- Then
	//
	m.Error(err)
	m.Equal(except.ErrNotFound, except.Reason(err))
}

func (m *MetaTestSuite) TestMergeKeepsExistingKeys() {
	// -- Given
	//
	existing := map[string]string{
		"app": "echo-server",
	}

	// -- When
	//
	merged := Merge(existing, &Snapshot{WorkloadName: "echo-server", TakenUnix: 1})

	// -- Then
	//
	m.Equal("echo-server", merged["app"])
	m.Contains(merged, consts.AnnotationKeySnapshot)
	m.NotContains(existing, consts.AnnotationKeySnapshot)
}

func (m *MetaTestSuite) TestMergeMapsSecondWins() {
	// -- When
	//
	merged := MergeMaps(
		map[string]string{"a": "1", "b": "old"},
		map[string]string{"b": "new"},
	)

	// -- Then
	//
	m.Equal(map[string]string{"a": "1", "b": "new"}, merged)
}

func TestMetaTestSuite(t *testing.T) {
	suite.Run(t, new(MetaTestSuite))
}
