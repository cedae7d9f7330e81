package live

import (
	"context"
	"net"
	"time"
)

const dnsPrefetchTimeout = 3 * time.Second

// prefetchDNS warms the resolver cache for every distinct host among the
// candidate URLs. Fire-and-forget: lookups run unbounded in the background
// and failures are swallowed, so the fetch phase never waits on this.
func prefetchDNS(ctx context.Context, resolver *net.Resolver, urls []string) {
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	hosts := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if host := HostOf(raw); host != "" {
			hosts[host] = struct{}{}
		}
	}

	for host := range hosts {
		go func(host string) {
			lookupCtx, cancel := context.WithTimeout(ctx, dnsPrefetchTimeout)
			defer cancel()
			_, _ = resolver.LookupHost(lookupCtx, host)
		}(host)
	}
}
