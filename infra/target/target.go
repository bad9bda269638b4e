// Package target - то, что монитор дергает на каждый CTD.
package target

import (
	"context"
)

// Result - итог одного вызова цели
type Result struct {
	Crashed bool
	Cause   string
}

// Target - цель фаззинга.
// Пустые data - проверка живости цели, непустые - очередной вход.
type Target interface {
	Run(ctx context.Context, data []byte) (Result, error)
}

// Static - всегда отвечает одним и тем же
type Static Result

func (s Static) Run(context.Context, []byte) (Result, error) {
	return Result(s), nil
}

// Func - адаптер для обычной функции
type Func func(ctx context.Context, data []byte) (Result, error)

func (f Func) Run(ctx context.Context, data []byte) (Result, error) {
	return f(ctx, data)
}
