package db

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Q holds all information necessary to execute a query
type Q struct {
	filter     any
	projection any
	sort       []string
	skip       int
	limit      int
	maxTime    time.Duration
}

// Query creates a db.Q for the given MongoDB query. The filter
// can be a struct, bson.D, bson.M, nil, etc.
func Query(filter any) Q {
	return Q{filter: filter, projection: bson.M{}}
}

func (q Q) Filter(filter any) Q {
	q.filter = filter
	return q
}

func (q Q) Project(projection any) Q {
	q.projection = projection
	return q
}

func (q Q) WithFields(fields ...string) Q {
	projection := bson.M{}
	for _, f := range fields {
		projection[f] = 1
	}
	q.projection = projection
	return q
}

func (q Q) WithoutFields(fields ...string) Q {
	projection := bson.M{}
	for _, f := range fields {
		projection[f] = 0
	}
	q.projection = projection
	return q
}

// Sort sets the sort keys. A key prefixed with "-" sorts in descending order.
func (q Q) Sort(sort []string) Q {
	q.sort = sort
	return q
}

func (q Q) Skip(skip int) Q {
	q.skip = skip
	return q
}

func (q Q) Limit(limit int) Q {
	q.limit = limit
	return q
}

func (q Q) MaxTime(maxTime time.Duration) Q {
	q.maxTime = maxTime
	return q
}

func (q Q) hasProjection() bool {
	if q.projection == nil {
		return false
	}
	if m, ok := q.projection.(bson.M); ok {
		return len(m) > 0
	}
	return true
}

func sortDocument(keys []string) bson.D {
	out := bson.D{}
	for _, k := range keys {
		if strings.HasPrefix(k, "-") {
			out = append(out, bson.E{Key: k[1:], Value: -1})
			continue
		}
		out = append(out, bson.E{Key: k, Value: 1})
	}
	return out
}
