/*
Package config loads the whole-system YAML configuration (component L):
queue list, default and per-queue policy selection, and queue-param/
policy-param strings, canonicalized per spec.md §6. Grounded on
queue_policy_base.hpp's apply_params comma/`=`-split parsing idiom and
the teacher's cmd/warren/apply.go yaml.v3 loading style.
*/
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quartzsched/qcore/pkg/errs"
	"github.com/quartzsched/qcore/pkg/queue"
)

const DefaultQueueName = "default"

// File is the on-disk YAML shape.
type File struct {
	Queues               string `yaml:"queues"`
	DefaultQueuePolicy   string `yaml:"default_queue_policy"`
	QueueParams          string `yaml:"queue_params"`
	PolicyParams         string `yaml:"policy_params"`
	QueuePolicyPerQueue  string `yaml:"queue_policy_per_queue"`
	QueueParamsPerQueue  string `yaml:"queue_params_per_queue"`
	PolicyParamsPerQueue string `yaml:"policy_params_per_queue"`
}

// QueueConfig is one queue's canonicalized, effective configuration
// after per-queue overrides are merged onto the top-level defaults.
type QueueConfig struct {
	Name         string
	Policy       queue.Policy
	QueueParams  string
	PolicyParams string
}

// Config is the canonicalized result of loading a File: one entry per
// named queue, in declaration order.
type Config struct {
	Queues []QueueConfig
}

// Load reads and parses path, then canonicalizes it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err)
	}
	return Canonicalize(&f)
}

// parseSpaceList splits a space-separated field, dropping empty tokens.
func parseSpaceList(raw string) []string {
	var out []string
	for _, tok := range strings.Fields(raw) {
		out = append(out, tok)
	}
	return out
}

// parsePerQueue parses a "name:value name2:value2" override string into
// a name -> value map.
func parsePerQueue(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, tok := range strings.Fields(raw) {
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, errs.New(errs.InvalidArgument, "malformed per-queue override: "+tok)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// Canonicalize applies spec.md §6's canonicalization rules: an empty
// `queues` list yields a single "default" queue; every per-queue
// property unset for a queue inherits the top-level value; an unknown
// queue named in a per-queue override is a not-found error.
func Canonicalize(f *File) (*Config, error) {
	names := parseSpaceList(f.Queues)
	if len(names) == 0 {
		names = []string{DefaultQueueName}
	}

	policyOverride, err := parsePerQueue(f.QueuePolicyPerQueue)
	if err != nil {
		return nil, err
	}
	queueParamsOverride, err := parsePerQueue(f.QueueParamsPerQueue)
	if err != nil {
		return nil, err
	}
	policyParamsOverride, err := parsePerQueue(f.PolicyParamsPerQueue)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	for _, overrides := range []map[string]string{policyOverride, queueParamsOverride, policyParamsOverride} {
		for name := range overrides {
			if !known[name] {
				return nil, errs.New(errs.NotFound, "per-queue override names unknown queue: "+name)
			}
		}
	}

	cfg := &Config{Queues: make([]QueueConfig, 0, len(names))}
	for _, name := range names {
		policyStr := f.DefaultQueuePolicy
		if v, ok := policyOverride[name]; ok {
			policyStr = v
		}
		policy, ok := queue.ParsePolicy(policyStr)
		if !ok {
			policy = queue.FCFS
		}

		queueParams := f.QueueParams
		if v, ok := queueParamsOverride[name]; ok {
			queueParams = v
		}
		policyParams := f.PolicyParams
		if v, ok := policyParamsOverride[name]; ok {
			policyParams = v
		}

		cfg.Queues = append(cfg.Queues, QueueConfig{
			Name:         name,
			Policy:       policy,
			QueueParams:  queueParams,
			PolicyParams: policyParams,
		})
	}
	return cfg, nil
}

// BuildSet constructs a queue.Set from a canonicalized Config, applying
// each queue's params and wiring all of them to the same matcher.
func (c *Config) BuildSet(m queue.MatcherFactory) (*queue.Set, error) {
	set := queue.NewSet()
	for _, qc := range c.Queues {
		q := queue.New(qc.Name, qc.Policy, m(qc.Name))
		if qc.QueueParams != "" {
			if err := q.SetQueueParams(qc.QueueParams); err != nil {
				return nil, err
			}
		}
		if qc.PolicyParams != "" {
			if err := q.SetPolicyParams(qc.PolicyParams); err != nil {
				return nil, err
			}
		}
		set.Add(q)
	}
	return set, nil
}
