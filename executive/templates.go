package executive

import "gopkg.in/yaml.v3"

// coordinationTemplate maps one objective to the tasks a managed agent
// should run in service of it, for agent_coordination_plan derivation.
type coordinationTemplate struct {
	AgentType string   `yaml:"agent_type"`
	Objective string   `yaml:"objective"`
	Tasks     []string `yaml:"tasks"`
}

// defaultCoordinationTemplatesYAML is the built-in objective->task mapping.
// Deployments that need a different mapping pass their own YAML document
// to NewExecutive via WithCoordinationTemplates.
const defaultCoordinationTemplatesYAML = `
- agent_type: market
  objective: pricing
  tasks:
    - analyze_competitor_pricing
    - recommend_price_adjustments
- agent_type: content
  objective: marketing
  tasks:
    - generate_campaign_copy
    - optimize_listing_content
- agent_type: logistics
  objective: fulfillment
  tasks:
    - audit_inventory_levels
    - optimize_shipping_routes
- agent_type: automation
  objective: efficiency
  tasks:
    - identify_automation_candidates
    - schedule_recurring_syncs
`

func parseCoordinationTemplates(doc string) ([]coordinationTemplate, error) {
	var templates []coordinationTemplate
	if err := yaml.Unmarshal([]byte(doc), &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// coordinationPlanFor builds agent_type -> tasks for the objectives a
// strategic request names. Objectives with no matching template are
// skipped; an objective may match more than one agent type.
func coordinationPlanFor(templates []coordinationTemplate, objectives []string) map[string][]string {
	plan := make(map[string][]string)
	for _, objective := range objectives {
		for _, tmpl := range templates {
			if tmpl.Objective == objective {
				plan[tmpl.AgentType] = append(plan[tmpl.AgentType], tmpl.Tasks...)
			}
		}
	}
	return plan
}
