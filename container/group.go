package container

import (
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

type groupKey struct {
	pid reserve.ProcessID
	gid uint32
}

// Group holds the regions reserved for one group id of a process and the
// buffers placed for it outside of them
type Group struct {
	key      groupKey
	refs     int
	reserved reserve.AreaList
	direct   map[*Buffer]struct{}
}

// Reserved returns the group's reserved area list
func (g *Group) Reserved() *reserve.AreaList {
	return &g.reserved
}

// Group returns the group of pid with id gid, creating it if needed, and
// takes a reference on it. It returns nil if the group limit is reached.
func (c *Container) Group(pid reserve.ProcessID, gid uint32) reserve.Group {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.lookup(groupKey{pid, gid})
	if g == nil {
		return nil
	}
	g.refs++
	return g
}

// ReleaseGroup drops a reference taken by Group. Groups without references,
// reservations or buffers are removed.
func (c *Container) ReleaseGroup(g reserve.Group) {
	grp := g.(*Group)

	c.mu.Lock()
	defer c.mu.Unlock()

	grp.refs--
	c.prune(grp)
}

// AddReserved moves the areas of list to the group's reserved list
func (c *Container) AddReserved(list *reserve.AreaList, g reserve.Group) {
	grp := g.(*Group)

	c.mu.Lock()
	defer c.mu.Unlock()

	grp.reserved = append(grp.reserved, *list...)
	*list = nil
}

// Groups returns the number of live groups
func (c *Container) Groups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}

// Reservations returns a copy of the areas reserved for group gid of pid
func (c *Container) Reservations(pid reserve.ProcessID, gid uint32) []reserve.Area {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[groupKey{pid, gid}]
	if !ok {
		return nil
	}
	out := make([]reserve.Area, len(g.reserved))
	for i, a := range g.reserved {
		out[i] = *a
	}
	return out
}

// lookup finds or creates a group. Callers hold c.mu.
func (c *Container) lookup(key groupKey) *Group {
	if g, ok := c.groups[key]; ok {
		return g
	}
	if c.cfg.MaxGroups > 0 && len(c.groups) >= c.cfg.MaxGroups {
		reserve.Debug("Group limit %d reached for process %d group %d", c.cfg.MaxGroups, key.pid, key.gid)
		return nil
	}
	g := &Group{key: key, direct: make(map[*Buffer]struct{})}
	c.groups[key] = g
	return g
}

// prune removes an unused group. Callers hold c.mu.
func (c *Container) prune(g *Group) {
	if g.refs > 0 || len(g.reserved) > 0 || len(g.direct) > 0 {
		return
	}
	if c.groups[g.key] == g {
		delete(c.groups, g.key)
	}
}
