package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/pkg/errors"
)

// keySet caches the provider's JSON web key set.
type keySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.Mutex
	set       jwk.Set
	fetchedAt time.Time
}

func newKeySet(issuer string, ttl time.Duration, client *http.Client) *keySet {
	return &keySet{
		url:    issuer + ".well-known/jwks.json",
		ttl:    ttl,
		client: client,
	}
}

func (k *keySet) get(ctx context.Context, forceRefresh bool) (jwk.Set, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.set != nil && !forceRefresh && time.Since(k.fetchedAt) < k.ttl {
		return k.set, nil
	}

	set, err := jwk.Fetch(ctx, k.url, jwk.WithHTTPClient(k.client))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching key set from '%s'", k.url)
	}
	k.set = set
	k.fetchedAt = time.Now()

	return set, nil
}

// publicKey returns the raw public key with the given key id, refreshing the
// key set once if the id isn't known.
func (k *keySet) publicKey(ctx context.Context, kid string) (any, error) {
	for _, refresh := range []bool{false, true} {
		set, err := k.get(ctx, refresh)
		if err != nil {
			return nil, err
		}
		key, ok := set.LookupKeyID(kid)
		if !ok {
			continue
		}
		var raw any
		if err = key.Raw(&raw); err != nil {
			return nil, errors.Wrapf(err, "reading key '%s'", kid)
		}
		return raw, nil
	}

	return nil, errors.Errorf("unknown signing key '%s'", kid)
}
