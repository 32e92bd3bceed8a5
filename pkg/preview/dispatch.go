package preview

import "github.com/dukex/flowport/pkg/models"

type Signal string

// SignalClose asks the host's parent to close the preview.
const SignalClose Signal = "close"

// Effect is an outcome of handling a message. Exactly one of Message and Signal is set.
type Effect struct {
	Message any
	Signal  Signal
}

func send(message any) Effect {
	return Effect{Message: message}
}

// Input is everything a handler may read besides the state.
type Input struct {
	Props Props
	// Active is the active execution known when the message arrived, if any.
	Active *models.ExecutionSummary
}

// Handler is a pure transition for one inbound command.
type Handler func(State, Input) (State, []Effect)

var handlers = map[string]Handler{
	CommandReady:    handleReady,
	CommandOpenNDV:  handleOpenNDV,
	CommandCloseNDV: handleCloseNDV,
	CommandError:    handleError,
}

// Dispatch runs the handler registered for command. Unknown commands leave the
// state untouched, produce no effects and report false.
func Dispatch(state State, command string, input Input) (State, []Effect, bool) {
	handler, ok := handlers[command]
	if !ok {
		return state, nil, false
	}

	next, effects := handler(state, input)

	return next, effects, true
}

// Handles reports whether command has a registered handler.
func Handles(command string) bool {
	_, ok := handlers[command]

	return ok
}

func handleReady(state State, input Input) (State, []Effect) {
	state.Ready = true

	effects := workflowEffects(input.Props)
	effects = append(effects, executionEffects(input.Props, input.Active)...)

	return state, effects
}

func workflowEffects(props Props) []Effect {
	if !props.hasNodes() {
		return nil
	}

	return []Effect{send(OpenWorkflowMessage{
		Command:        CommandOpenWorkflow,
		Workflow:       props.Workflow,
		CanOpenNDV:     props.canOpenNDV(),
		HideNodeIssues: props.hideNodeIssues(),
	})}
}

func executionEffects(props Props, active *models.ExecutionSummary) []Effect {
	if props.ExecutionID == "" || props.Mode != ModeExecution {
		return nil
	}

	effects := []Effect{send(OpenExecutionMessage{
		Command:       CommandOpenExecution,
		ExecutionID:   props.ExecutionID,
		ExecutionMode: props.ExecutionMode,
		CanOpenNDV:    props.canOpenNDV(),
	})}

	if active != nil {
		effects = append(effects, send(SetActiveExecutionMessage{
			Command:   CommandSetActiveExecution,
			Execution: active,
		}))
	}

	return effects
}

func handleOpenNDV(state State, _ Input) (State, []Effect) {
	state.NDVOpen = true

	return state, nil
}

func handleCloseNDV(state State, _ Input) (State, []Effect) {
	state.NDVOpen = false

	return state, nil
}

func handleError(state State, _ Input) (State, []Effect) {
	return state, []Effect{{Signal: SignalClose}}
}
