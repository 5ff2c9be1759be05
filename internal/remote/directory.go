package remote

import (
	"fmt"
	"sort"
)

// Directory is a config-backed ServerDirectory.
type Directory struct {
	servers map[string]Server
}

// NewDirectory builds a directory from the configured server list. Server ids
// must be unique.
func NewDirectory(servers []Server) (*Directory, error) {
	byID := make(map[string]Server, len(servers))
	for _, srv := range servers {
		if srv.ID == "" {
			return nil, fmt.Errorf("server %q has no id", srv.Name)
		}
		if _, exists := byID[srv.ID]; exists {
			return nil, fmt.Errorf("duplicate server id %q", srv.ID)
		}
		if srv.Port == 0 {
			srv.Port = 22
		}
		byID[srv.ID] = srv
	}
	return &Directory{servers: byID}, nil
}

// Lookup returns the full server record for an id.
func (d *Directory) Lookup(serverID string) (Server, error) {
	srv, exists := d.servers[serverID]
	if !exists {
		return Server{}, fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}
	return srv, nil
}

// NameOf returns the display name for a server id.
func (d *Directory) NameOf(serverID string) (string, error) {
	srv, err := d.Lookup(serverID)
	if err != nil {
		return "", err
	}
	return srv.Name, nil
}

// Servers returns all configured servers sorted by id.
func (d *Directory) Servers() []Server {
	servers := make([]Server, 0, len(d.servers))
	for _, srv := range d.servers {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].ID < servers[j].ID
	})
	return servers
}
