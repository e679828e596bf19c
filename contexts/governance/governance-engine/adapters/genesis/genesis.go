// Package genesis loads the document an engine is initialized from: the
// founding members, the managed subsystems and the allowed actions.
package genesis

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"consortium/contexts/governance/governance-engine/adapters/dispatch"
	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// SelfDestination routes an action to the engine's own interface.
const SelfDestination = "self"

//go:embed default.yaml
var defaultDocument []byte

// Document is the raw YAML form.
type Document struct {
	Members    []string        `yaml:"members"`
	Subsystems []SubsystemSpec `yaml:"subsystems"`
	Actions    []ActionSpec    `yaml:"actions"`
}

type SubsystemSpec struct {
	Name       string   `yaml:"name"`
	Address    string   `yaml:"address"`
	Signatures []string `yaml:"signatures"`
}

// ActionSpec names its destination as "self", a subsystem name or a hex
// address. Outcome functions are canonical signatures; empty means none.
type ActionSpec struct {
	Name               string `yaml:"name"`
	Destination        string `yaml:"destination"`
	RequiredPercentage int    `yaml:"required_percentage"`
	Timeout            string `yaml:"timeout"`
	Success            string `yaml:"success"`
	Revoke             string `yaml:"revoke"`
	OnTimeout          string `yaml:"on_timeout"`
}

type Subsystem struct {
	Name       string
	Address    entities.Address
	Signatures []string
}

// Genesis is a validated document bound to an engine address.
type Genesis struct {
	Members    []entities.Address
	Subsystems []Subsystem
	Actions    []entities.Action
	Names      map[entities.ActionKey]string
}

// Default returns the embedded development document.
func Default() (Document, error) {
	return Parse(bytes.NewReader(defaultDocument))
}

// Load reads path, or the embedded document when path is empty.
func Load(path string) (Document, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open genesis %s: %w", path, err)
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return Document{}, fmt.Errorf("genesis %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, errors.New("empty genesis document")
		}
		return Document{}, fmt.Errorf("decode genesis: %w", err)
	}
	return doc, nil
}

// Resolve validates doc and binds "self" destinations to self. Every problem
// found is reported, not only the first.
func Resolve(doc Document, self entities.Address) (Genesis, error) {
	var result *multierror.Error
	out := Genesis{Names: make(map[entities.ActionKey]string, len(doc.Actions))}

	if len(doc.Members) == 0 {
		result = multierror.Append(result, errors.New("members: at least one member is required"))
	}
	seenMembers := make(map[entities.Address]struct{}, len(doc.Members))
	for i, raw := range doc.Members {
		addr, err := parseAddress(raw)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("members[%d]: %w", i, err))
			continue
		}
		if addr == self {
			result = multierror.Append(result, fmt.Errorf("members[%d]: engine address cannot be a member", i))
			continue
		}
		if _, dup := seenMembers[addr]; dup {
			result = multierror.Append(result, fmt.Errorf("members[%d]: duplicate member %s", i, addr.Hex()))
			continue
		}
		seenMembers[addr] = struct{}{}
		out.Members = append(out.Members, addr)
	}

	subsystems := make(map[string]Subsystem, len(doc.Subsystems))
	routed := map[entities.Address]string{self: SelfDestination}
	for i, spec := range doc.Subsystems {
		name := strings.TrimSpace(spec.Name)
		if name == "" || name == SelfDestination {
			result = multierror.Append(result, fmt.Errorf("subsystems[%d]: invalid name %q", i, spec.Name))
			continue
		}
		if _, dup := subsystems[name]; dup {
			result = multierror.Append(result, fmt.Errorf("subsystems[%d]: duplicate name %q", i, name))
			continue
		}
		addr, err := parseAddress(spec.Address)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("subsystems[%d] %s: %w", i, name, err))
			continue
		}
		if owner, taken := routed[addr]; taken {
			result = multierror.Append(result, fmt.Errorf("subsystems[%d] %s: address %s already used by %s", i, name, addr.Hex(), owner))
			continue
		}
		signatures := make([]string, 0, len(spec.Signatures))
		for _, signature := range spec.Signatures {
			method, err := dispatch.ParseSignature(signature)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("subsystems[%d] %s: %w", i, name, err))
				continue
			}
			signatures = append(signatures, method.Sig)
		}
		sub := Subsystem{Name: name, Address: addr, Signatures: signatures}
		subsystems[name] = sub
		routed[addr] = name
		out.Subsystems = append(out.Subsystems, sub)
	}

	for i, spec := range doc.Actions {
		action, err := resolveAction(spec, self, subsystems)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("actions[%d] %s: %w", i, spec.Name, err))
			continue
		}
		if existing, dup := out.Names[action.Key]; dup {
			result = multierror.Append(result, fmt.Errorf("actions[%d]: duplicate action %q", i, existing))
			continue
		}
		out.Names[action.Key] = strings.TrimSpace(spec.Name)
		out.Actions = append(out.Actions, action)
	}

	if err := result.ErrorOrNil(); err != nil {
		return Genesis{}, err
	}
	return out, nil
}

func resolveAction(spec ActionSpec, self entities.Address, subsystems map[string]Subsystem) (entities.Action, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return entities.Action{}, errors.New("name is required")
	}
	if spec.RequiredPercentage < 0 || spec.RequiredPercentage > 100 {
		return entities.Action{}, fmt.Errorf("required_percentage %d out of range", spec.RequiredPercentage)
	}
	var timeout time.Duration
	if strings.TrimSpace(spec.Timeout) != "" {
		parsed, err := time.ParseDuration(spec.Timeout)
		if err != nil || parsed < 0 {
			return entities.Action{}, fmt.Errorf("invalid timeout %q", spec.Timeout)
		}
		timeout = parsed
	}

	var (
		destination entities.Address
		declared    func(string) bool
	)
	target := strings.TrimSpace(spec.Destination)
	switch {
	case target == SelfDestination:
		destination = self
		declared = declaredBySelf
	case common.IsHexAddress(target):
		destination = common.HexToAddress(target)
		declared = func(string) bool { return true }
		for _, sub := range subsystems {
			if sub.Address == destination {
				declared = declaredBy(sub)
			}
		}
	default:
		sub, ok := subsystems[target]
		if !ok {
			return entities.Action{}, fmt.Errorf("unknown destination %q", spec.Destination)
		}
		destination = sub.Address
		declared = declaredBy(sub)
	}

	action := entities.Action{
		Key:                entities.ActionKeyOf(name),
		RequiredPercentage: uint8(spec.RequiredPercentage),
		TimeOut:            timeout,
		Destination:        destination,
	}
	var result *multierror.Error
	for _, outcome := range []struct {
		field     string
		signature string
		selector  *entities.Selector
	}{
		{"success", spec.Success, &action.SuccessFunction},
		{"revoke", spec.Revoke, &action.RevokeFunction},
		{"on_timeout", spec.OnTimeout, &action.TimeOutFunction},
	} {
		if strings.TrimSpace(outcome.signature) == "" {
			continue
		}
		method, err := dispatch.ParseSignature(outcome.signature)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", outcome.field, err))
			continue
		}
		if !declared(method.Sig) {
			result = multierror.Append(result, fmt.Errorf("%s: %s is not declared by %s", outcome.field, method.Sig, target))
			continue
		}
		*outcome.selector = entities.SelectorOf(method.Sig)
	}
	if err := result.ErrorOrNil(); err != nil {
		return entities.Action{}, err
	}
	return action, nil
}

func declaredBySelf(signature string) bool {
	for _, method := range commands.SelfABI().Methods {
		if method.Sig == signature {
			return true
		}
	}
	return false
}

func declaredBy(sub Subsystem) func(string) bool {
	return func(signature string) bool {
		for _, declared := range sub.Signatures {
			if declared == signature {
				return true
			}
		}
		return false
	}
}

func parseAddress(raw string) (entities.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return entities.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (entities.Address{}) {
		return entities.Address{}, errors.New("zero address")
	}
	return addr, nil
}

// InitializeCommand is the seed passed to Governance.Initialize.
func (g Genesis) InitializeCommand() commands.InitializeCommand {
	return commands.InitializeCommand{
		Members: append([]entities.Address(nil), g.Members...),
		Actions: append([]entities.Action(nil), g.Actions...),
	}
}

// MountJournals registers a recording stand-in for every subsystem and
// returns them by name.
func (g Genesis) MountJournals(router *dispatch.Router) (map[string]*dispatch.Journal, error) {
	journals := make(map[string]*dispatch.Journal, len(g.Subsystems))
	for _, sub := range g.Subsystems {
		journal, err := dispatch.NewJournal(sub.Signatures)
		if err != nil {
			return nil, fmt.Errorf("subsystem %s: %w", sub.Name, err)
		}
		if err := router.Register(sub.Name, sub.Address, journal); err != nil {
			return nil, err
		}
		journals[sub.Name] = journal
	}
	return journals, nil
}
