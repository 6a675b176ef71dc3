package collector

import (
	"sync"

	"github.com/antongulenko/golib"
)

type CollectorTask func() error

type CollectorTaskPolicy int

const (
	CollectorTasksSequential = CollectorTaskPolicy(0)
	CollectorTasksParallel   = CollectorTaskPolicy(1)
	CollectorTasksUntilError = CollectorTaskPolicy(2)
)

func (policy CollectorTaskPolicy) String() string {
	switch policy {
	case CollectorTasksSequential:
		return "sequential"
	case CollectorTasksParallel:
		return "parallel"
	case CollectorTasksUntilError:
		return "until-error"
	default:
		return "unknown"
	}
}

type CollectorTasks []CollectorTask

func (pool CollectorTasks) Run(policy CollectorTaskPolicy) error {
	switch policy {
	case CollectorTasksParallel:
		return pool.RunParallel()
	case CollectorTasksUntilError:
		return pool.RunUntilError()
	default:
		return pool.RunSequential()
	}
}

func (pool CollectorTasks) RunParallel() error {
	var wg sync.WaitGroup
	var errors golib.MultiError
	var errorsLock sync.Mutex
	wg.Add(len(pool))
	for _, task := range pool {
		go func(task CollectorTask) {
			defer wg.Done()
			err := task()
			errorsLock.Lock()
			defer errorsLock.Unlock()
			errors.Add(err)
		}(task)
	}
	wg.Wait()
	return errors.NilOrError()
}

func (pool CollectorTasks) RunSequential() error {
	var errors golib.MultiError
	for _, task := range pool {
		errors.Add(task())
	}
	return errors.NilOrError()
}

func (pool CollectorTasks) RunUntilError() error {
	for _, task := range pool {
		if err := task(); err != nil {
			return err
		}
	}
	return nil
}
