// Package discovery advertises the drawing board on the local network over
// mDNS so clients can find it without typing an address.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

const ServiceType = "_drawboard._tcp"

func newService(instance, host string, port int, ips []net.IP, info []string) (*mdns.MDNSService, error) {
	if instance == "" {
		name, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = name
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", host, port, ips, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Advertise announces the service until ctx is done.
func Advertise(ctx context.Context, instance string, port int, log *zap.Logger) error {
	service, err := newService(instance, "", port, nil, []string{"path=/ws"})
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Info("advertising over mDNS", zap.String("service", ServiceType), zap.Int("port", port))

	<-ctx.Done()
	return server.Shutdown()
}

// Browse reports every board found on the network as host:port until ctx
// is done or the lookup finishes.
func Browse(ctx context.Context, found func(addr string)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port))
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.DisableIPv6 = true
	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done
	return err
}
