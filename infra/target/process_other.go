//go:build !unix

package target

import "os/exec"

// без групп процессов остается только WaitDelay
func killGroup(*exec.Cmd) {}
