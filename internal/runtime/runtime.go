// runtime/runtime.go

package runtime

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"rgehrsitz/nvm/internal/image"
)

// Interpreter executes the bytecode of one method to completion.
type Interpreter interface {
	Run(method int) error
}

// Program is the method table view the runner needs. *loader.Loader
// satisfies it once initialized.
type Program interface {
	MethodCount() int
	MethodHeader(i int) (image.MethodHeader, error)
	MainMethod() (int, error)
}

// Phase names the startup stage a method ran in.
type Phase string

const (
	PhaseClinit Phase = "clinit"
	PhaseMain   Phase = "main"
)

// RunError reports a failure while dispatching a startup method.
type RunError struct {
	Phase  Phase
	Method int
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s method %d: %v", e.Phase, e.Method, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Runner drives program startup: every static initializer in table order,
// then main.
type Runner struct {
	program Program
	interp  Interpreter
}

// NewRunner creates a runner for a validated program.
func NewRunner(program Program, interp Interpreter) *Runner {
	return &Runner{
		program: program,
		interp:  interp,
	}
}

// Run invokes the interpreter on each static initializer in ascending table
// order and then once on the main method. The first error stops startup.
func (r *Runner) Run() error {
	main, err := r.program.MainMethod()
	if err != nil {
		return err
	}

	for i := 0; i < r.program.MethodCount(); i++ {
		hdr, err := r.program.MethodHeader(i)
		if err != nil {
			return &RunError{Phase: PhaseClinit, Method: i, Err: err}
		}
		if !hdr.IsClinit() {
			continue
		}

		log.Debug().Int("method", i).Str("id", hdr.ID.String()).Msg("Calling clinit")
		if err := r.interp.Run(i); err != nil {
			return &RunError{Phase: PhaseClinit, Method: i, Err: err}
		}
	}

	log.Debug().Int("method", main).Msg("Calling main")
	if err := r.interp.Run(main); err != nil {
		return &RunError{Phase: PhaseMain, Method: main, Err: err}
	}
	return nil
}
