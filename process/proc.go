package process

import (
	"context"

	ps "github.com/shirou/gopsutil/v4/process"
)

// listProcesses snapshots the OS process table.
func listProcesses(ctx context.Context) ([]Info, error) {
	procs, err := ps.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited since the snapshot, or not ours to inspect.
			continue
		}
		info := Info{PID: int(p.Pid), Name: name}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			info.Path = exe
		}
		out = append(out, info)
	}
	return out, nil
}
