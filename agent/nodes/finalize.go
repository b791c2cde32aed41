package routernode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
)

func Finalize(in *TurnState) (TurnOutput, error) {
	if in == nil || in.Session == nil {
		return TurnOutput{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}
	return TurnOutput{
		Messages:     in.Output,
		Halted:       in.Halted,
		State:        in.Next.String(),
		ActiveWorker: in.Session.ActiveWorker,
	}, nil
}
