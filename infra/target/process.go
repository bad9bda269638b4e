package target

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultTimeout - меньше tcp.DefaultIOTimeout, иначе контроллер не дождется отчета о таймауте
	DefaultTimeout = time.Second
	// столько stderr цели кладем в причину падения
	maxCauseLen = 512
	// сколько ждем закрытия stdio после убийства цели
	waitDelay = 100 * time.Millisecond
)

var ErrNotExecutable = errors.New("target is not executable")

// Process - запускает бинарь на каждый вход, вход подается в stdin.
// Падение - смерть от сигнала или таймаут. Ненулевой код выхода падением не считается.
type Process struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

func NewProcess(path string, args []string, timeout time.Duration) (*Process, error) {
	p := &Process{Path: path, Args: args, Timeout: timeout}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Process) Run(parent context.Context, data []byte) (Result, error) {
	if len(data) == 0 {
		// проверка живости: цель на месте и запускаема, сам процесс не стартуем
		return Result{}, p.check()
	}

	ctx, cancel := context.WithTimeout(parent, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// потомки цели держат stderr открытым, убиваем всю группу
	killGroup(cmd)
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if parent.Err() != nil {
		// нас остановили снаружи, это не падение цели
		return Result{}, errors.Wrapf(parent.Err(), "run %s interrupted", p.Path)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return Result{Crashed: true, Cause: fmt.Sprintf("timeout after %v", p.Timeout)}, nil
	}
	if cmd.ProcessState == nil {
		return Result{}, errors.Wrapf(err, "start %s", p.Path)
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Result{Crashed: true, Cause: cause(ws.Signal(), stderr.Bytes())}, nil
	}
	return Result{}, nil
}

func (p *Process) check() error {
	info, err := os.Stat(p.Path)
	if err != nil {
		return errors.Wrapf(ErrNotExecutable, "%s: %v", p.Path, err)
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return errors.Wrapf(ErrNotExecutable, "%s: mode %v", p.Path, info.Mode())
	}
	return nil
}

func cause(sig syscall.Signal, stderr []byte) string {
	res := "signal: " + sig.String()
	stderr = bytes.TrimSpace(stderr)
	if len(stderr) > maxCauseLen {
		stderr = stderr[len(stderr)-maxCauseLen:]
	}
	if len(stderr) != 0 {
		res += ": " + string(stderr)
	}
	return res
}
