package units

import (
	"context"
	"fmt"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/dependency"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
)

const queueStatsCollectorJobName = "queue-stats-collector"

func init() {
	registry.AddJobType(queueStatsCollectorJobName, func() amboy.Job {
		return makeQueueStatsCollector()
	})
}

type queueStatsCollector struct {
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`

	env scrapedash.Environment
}

func makeQueueStatsCollector() *queueStatsCollector {
	j := &queueStatsCollector{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    queueStatsCollectorJobName,
				Version: 0,
			},
		},
	}
	j.SetDependency(dependency.NewAlways())
	return j
}

// NewQueueStatsCollector reports the stats of the local queue, which runs
// the task runs, along with the go runtime stats as provided by grip.
func NewQueueStatsCollector(env scrapedash.Environment, ts string) amboy.Job {
	j := makeQueueStatsCollector()
	j.env = env
	j.SetID(fmt.Sprintf("%s.%s", queueStatsCollectorJobName, ts))
	return j
}

func (j *queueStatsCollector) Run(ctx context.Context) {
	defer j.MarkComplete()
	if j.env == nil {
		j.env = scrapedash.GetEnvironment()
	}
	if j.env == nil {
		j.AddError(errors.New("no environment configured"))
		return
	}

	if q := j.env.LocalQueue(); q != nil && q.Info().Started {
		grip.Info(message.Fields{
			"message": "local queue stats",
			"job":     j.ID(),
			"stats":   q.Stats(ctx),
		})
	}
	grip.Info(message.CollectGoStats())
}
