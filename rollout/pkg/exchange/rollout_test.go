package exchange

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
)

type CreateRolloutRequestTestSuite struct {
	suite.Suite
}

func (c *CreateRolloutRequestTestSuite) request() *CreateRolloutRequest {
	return &CreateRolloutRequest{
		Namespace:      "default",
		WorkloadName:   "echo-server",
		CandidateImage: "echo-server:v2",
		Strategy:       model.StrategyCanary,
		CanaryWeight:   25,
		Threshold:      95,
	}
}

func (c *CreateRolloutRequestTestSuite) TestValidRequest() {
	c.NoError(c.request().Validate())
}

func (c *CreateRolloutRequestTestSuite) TestOmittedOptionalsAreValid() {
	// -- Given
	//
	req := &CreateRolloutRequest{
		Namespace:      "default",
		WorkloadName:   "echo-server",
		CandidateImage: "echo-server:v2",
	}

	// -- Then
	//
	c.NoError(req.Validate())
}

func (c *CreateRolloutRequestTestSuite) TestRejectsBadRequests() {
	cases := []struct {
		name   string
		mutate func(*CreateRolloutRequest)
	}{
		{"MissingNamespace", func(r *CreateRolloutRequest) { r.Namespace = "" }},
		{"MissingWorkload", func(r *CreateRolloutRequest) { r.WorkloadName = "" }},
		{"MissingImage", func(r *CreateRolloutRequest) { r.CandidateImage = "" }},
		{"UnknownStrategy", func(r *CreateRolloutRequest) { r.Strategy = "purple" }},
		{"WeightTooHigh", func(r *CreateRolloutRequest) { r.CanaryWeight = 101 }},
		{"NegativeThreshold", func(r *CreateRolloutRequest) { r.Threshold = -1 }},
		{"NegativeDuration", func(r *CreateRolloutRequest) { r.DurationSeconds = -10 }},
	}

	for _, tc := range cases {
		req := c.request()
		tc.mutate(req)

		err := req.Validate()

		c.Error(err, tc.name)
		c.Equal(except.ErrInvalid, except.Reason(err), tc.name)
	}
}

func TestCreateRolloutRequestTestSuite(t *testing.T) {
	suite.Run(t, new(CreateRolloutRequestTestSuite))
}
