package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	log "github.com/sirupsen/logrus"
)

const HealthMonitorServiceKey = "HealthMonitorService"

const ProberKey = "Prober"

type Prober interface {
	Probe(ctx context.Context, url string) model.HealthSample
}

type HealthMonitorService interface {
	// Monitor samples the URL at the spec's cadence until ctx is canceled.
	// The returned channel closes when sampling stops.
	Monitor(ctx context.Context, spec *model.MonitorSpec) <-chan model.HealthSample
	CandidateURL(candidate *model.Candidate) string
}

type healthMonitorService struct {
	Prober Prober         `inject:"Prober"`
	Config *config.Config `inject:"Config"`
}

func (h *healthMonitorService) Monitor(ctx context.Context, spec *model.MonitorSpec) <-chan model.HealthSample {
	out := make(chan model.HealthSample)

	go func() {
		defer close(out)

		ticker := time.NewTicker(spec.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pctx, cancel := context.WithTimeout(ctx, spec.ProbeTimeout)
				sample := h.Prober.Probe(pctx, spec.URL)
				cancel()

				log.WithField("workload", spec.WorkloadName).
					WithField("url", spec.URL).
					WithField("healthy", sample.Healthy).
					WithField("latency", sample.Latency).
					Debug("Sampled candidate health")

				select {
				case out <- sample:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (h *healthMonitorService) CandidateURL(candidate *model.Candidate) string {
	return fmt.Sprintf("%s://%s.%s.svc:%d%s",
		h.Config.Probe.Scheme,
		candidate.Service.Name,
		candidate.Service.Namespace,
		h.Config.Probe.Port,
		h.Config.Probe.Path,
	)
}

type httpProber struct {
	Client *http.Client
}

func (p *httpProber) Probe(ctx context.Context, url string) model.HealthSample {
	start := time.Now()
	sample := model.HealthSample{Time: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}

	resp, err := p.Client.Do(req)
	sample.Latency = time.Since(start)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sample.Healthy = true
	} else {
		sample.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	return sample
}
