package agentrelay

import (
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/intent"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/session"
	"github.com/hupe1980/agentrelay/team"
)

// FromConfig wires a Relay from cfg: one solo persona, a producer/reviewer
// pipeline and a document analyst, all backed by llm. When classifier is nil
// a phrase classifier over cfg's phrase lists is used. cfg is validated
// first.
func FromConfig(cfg *config.Config, llm model.Model, classifier intent.Classifier, logger logging.Logger) (*Relay, error) {
	if cfg == nil {
		defaults := config.Defaults()
		cfg = &defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNoOp(logger)

	if classifier == nil {
		phrases, err := cfg.Phrases()
		if err != nil {
			return nil, err
		}
		classifier = intent.NewPhraseClassifier(phrases, func(o *intent.PhraseClassifierOptions) {
			o.Logger = logging.ForComponent(logger, "intent")
		})
	}

	endpoint := func(p config.PersonaConfig, instruction agent.Instruction) *agent.Endpoint {
		info := p.Info
		if info.Name == "" {
			info = cfg.Directory().Lookup(p.Name)
		}
		return agent.NewEndpoint(p.Name, llm, func(o *agent.EndpointOptions) {
			o.Instruction = instruction
			o.Info = &info
			o.CallTimeout = cfg.Model.CallTimeout
			o.MaxHistoryMessages = p.MaxHistory
			o.Logger = logging.ForComponent(logger, "agent")
		})
	}

	templates := session.Templates{
		Solo: func(string) (*session.Solo, error) {
			p := cfg.Agents.Solo
			return session.NewSolo(endpoint(p, agent.NewInstructionFromText(p.Instruction))), nil
		},
		Pipeline: func(string) (*session.Pipeline, error) {
			producer, reviewer := cfg.Agents.Producer, cfg.Agents.Reviewer
			rr, err := team.NewRoundRobin([]team.Participant{
				endpoint(producer, agent.NewInstructionFromText(producer.Instruction)),
				endpoint(reviewer, agent.NewInstructionFromText(reviewer.Instruction)),
			}, func(o *team.Options) {
				o.Termination = Termination(cfg.Team)
				o.MaxTurns = cfg.Team.MaxTurns
				o.Logger = logging.ForComponent(logger, "team")
			})
			if err != nil {
				return nil, fmt.Errorf("build pipeline: %w", err)
			}
			return session.NewPipeline(rr), nil
		},
	}

	registry, err := session.NewRegistry(classifier, templates, func(o *session.Options) {
		o.Logger = logging.ForComponent(logger, "registry")
	})
	if err != nil {
		return nil, err
	}

	analyst := func(document string) (*agent.Endpoint, error) {
		p := cfg.Agents.Analyst
		return endpoint(p, agent.NewInstructionFromTemplate(p.Instruction, map[string]any{"document": document})), nil
	}

	return New(registry, func(o *Options) {
		o.Directory = cfg.Directory()
		o.Analyst = analyst
		o.FallbackReply = cfg.Agents.FallbackReply
		o.Logger = logger
	}), nil
}

// Termination builds the pipeline termination rule from tc: the run ends
// after any terminal agent's turn, or as soon as a turn mentions the
// approval keyword. With neither configured one full round is run.
func Termination(tc config.TeamConfig) team.Termination {
	var conds []team.Termination
	if len(tc.Terminal) > 0 {
		conds = append(conds, team.SourceMatch(tc.Terminal...))
	}
	if tc.ApprovalKeyword != "" {
		conds = append(conds, team.TextMention(tc.ApprovalKeyword))
	}
	switch len(conds) {
	case 0:
		return team.MaxRounds(1)
	case 1:
		return conds[0]
	default:
		return team.Any(conds...)
	}
}
