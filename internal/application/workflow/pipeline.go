package workflow

import (
	"fmt"
	"sort"

	"github.com/esunday5/staff-portal/internal/domain/entity"
	domainwf "github.com/esunday5/staff-portal/internal/domain/workflow"
)

// Stage is one role-gated state of a request type's pipeline
type Stage struct {
	State        domainwf.State
	RequiredRole entity.RoleName
	Transitions  map[domainwf.Trigger]domainwf.State
}

// Pipeline holds the (requestType, state) -> role and (requestType, state, decision) -> state tables
type Pipeline struct {
	stages map[entity.RequestType]map[domainwf.State]Stage
	order  []domainwf.State
}

// GenericStages is the pipeline shared by every request type today
func GenericStages() []Stage {
	rejectOrReturn := func(next domainwf.State) map[domainwf.Trigger]domainwf.State {
		return map[domainwf.Trigger]domainwf.State{
			domainwf.TriggerApprove: next,
			domainwf.TriggerReject:  domainwf.StateRejected,
			domainwf.TriggerReturn:  domainwf.StateReturnedToOfficer,
		}
	}

	return []Stage{
		{
			State:        domainwf.StatePending,
			RequiredRole: entity.RoleSupervisor,
			Transitions:  rejectOrReturn(domainwf.StateAuthorizedBySupervisor),
		},
		{
			State:        domainwf.StateAuthorizedBySupervisor,
			RequiredRole: entity.RoleReviewer,
			Transitions:  rejectOrReturn(domainwf.StateReviewedByReviewer),
		},
		{
			State:        domainwf.StateReviewedByReviewer,
			RequiredRole: entity.RoleApprover,
			Transitions:  rejectOrReturn(domainwf.StateApprovedByApprover),
		},
		{
			// the Approver requests payment from the fund-transfer desk
			State:        domainwf.StateApprovedByApprover,
			RequiredRole: entity.RoleApprover,
			Transitions:  rejectOrReturn(domainwf.StatePaymentRequested),
		},
		{
			State:        domainwf.StateReturnedToOfficer,
			RequiredRole: entity.RoleOfficer,
			Transitions: map[domainwf.Trigger]domainwf.State{
				domainwf.TriggerResubmit: domainwf.StatePending,
			},
		},
	}
}

// NewPipeline builds the tables; a type without stages has no pipeline.
// It panics on a stage that targets an invalid state.
func NewPipeline(stagesByType map[entity.RequestType][]Stage) *Pipeline {
	p := &Pipeline{
		stages: make(map[entity.RequestType]map[domainwf.State]Stage),
		order:  domainwf.AllStates(),
	}

	for rt, stages := range stagesByType {
		table := make(map[domainwf.State]Stage, len(stages))
		for _, st := range stages {
			for trigger, to := range st.Transitions {
				if !to.IsValid() {
					panic(fmt.Sprintf("stage %s: trigger %s targets invalid state %s", st.State, trigger, to))
				}
			}
			table[st.State] = st
		}
		p.stages[rt] = table
	}
	return p
}

// DefaultPipeline gives every request type the generic stages
func DefaultPipeline() *Pipeline {
	byType := make(map[entity.RequestType][]Stage)
	for _, rt := range entity.AllRequestTypes() {
		byType[rt] = GenericStages()
	}
	return NewPipeline(byType)
}

func (p *Pipeline) stage(rt entity.RequestType, state domainwf.State) (Stage, bool) {
	table, ok := p.stages[rt]
	if !ok {
		return Stage{}, false
	}
	st, ok := table[state]
	return st, ok
}

// RequiredRole returns the role that acts on state; terminal states have none
func (p *Pipeline) RequiredRole(rt entity.RequestType, state domainwf.State) (entity.RoleName, bool) {
	st, ok := p.stage(rt, state)
	if !ok {
		return "", false
	}
	return st.RequiredRole, true
}

// Next returns the state decision leads to from state
func (p *Pipeline) Next(rt entity.RequestType, state domainwf.State, decision domainwf.Trigger) (domainwf.State, bool) {
	st, ok := p.stage(rt, state)
	if !ok {
		return "", false
	}
	next, ok := st.Transitions[decision]
	return next, ok
}

// Decisions lists the user decisions available in state, sorted by name. Resubmit is excluded.
func (p *Pipeline) Decisions(rt entity.RequestType, state domainwf.State) []domainwf.Trigger {
	st, ok := p.stage(rt, state)
	if !ok {
		return nil
	}
	var out []domainwf.Trigger
	for trigger := range st.Transitions {
		if trigger.IsDecision() {
			out = append(out, trigger)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// StatesFor lists the states where role is the required role, in pipeline order
func (p *Pipeline) StatesFor(rt entity.RequestType, role entity.RoleName) []domainwf.State {
	var out []domainwf.State
	for _, state := range p.order {
		if st, ok := p.stage(rt, state); ok && st.RequiredRole == role {
			out = append(out, state)
		}
	}
	return out
}

// StateMachine builds a machine for rt positioned at current
func (p *Pipeline) StateMachine(rt entity.RequestType, current domainwf.State) (domainwf.StateMachine, error) {
	table, ok := p.stages[rt]
	if !ok {
		return nil, fmt.Errorf("no pipeline for request type %s", rt)
	}
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrInvalidState, current)
	}

	builder := domainwf.NewBuilder()
	for _, state := range p.order {
		st, ok := table[state]
		if !ok || state.IsTerminal() {
			continue
		}
		cfg := builder.Configure(state)
		triggers := make([]domainwf.Trigger, 0, len(st.Transitions))
		for trigger := range st.Transitions {
			triggers = append(triggers, trigger)
		}
		sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
		for _, trigger := range triggers {
			cfg.Permit(trigger, st.Transitions[trigger])
		}
	}
	return builder.Build(current), nil
}
