package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// EventBridgeAPI is the narrow subset of *eventbridge.Client this
// discoverer calls.
type EventBridgeAPI interface {
	ListEventBuses(ctx context.Context, in *eventbridge.ListEventBusesInput, opts ...func(*eventbridge.Options)) (*eventbridge.ListEventBusesOutput, error)
	ListRules(ctx context.Context, in *eventbridge.ListRulesInput, opts ...func(*eventbridge.Options)) (*eventbridge.ListRulesOutput, error)
	ListTargetsByRule(ctx context.Context, in *eventbridge.ListTargetsByRuleInput, opts ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error)
}

// EventBridgeDiscoverer enumerates event buses, rules, and rule targets.
type EventBridgeDiscoverer struct {
	client EventBridgeAPI
}

func NewEventBridgeDiscoverer(client EventBridgeAPI) *EventBridgeDiscoverer {
	return &EventBridgeDiscoverer{client: client}
}

func (d *EventBridgeDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var busToken *string
	for {
		busOut, err := d.client.ListEventBuses(ctx, &eventbridge.ListEventBusesInput{NextToken: busToken})
		if err != nil {
			return nil, err
		}
		for _, bus := range busOut.EventBuses {
			if bus.Name == nil {
				continue
			}
			isDefault := *bus.Name == "default"
			refs = append(refs, newRef(*bus.Name, "event-bus", h, region, map[string]any{"isDefault": isDefault}))

			var ruleToken *string
			for {
				ruleOut, err := d.client.ListRules(ctx, &eventbridge.ListRulesInput{EventBusName: bus.Name, NextToken: ruleToken})
				if err != nil {
					return nil, err
				}
				for _, rule := range ruleOut.Rules {
					if rule.Name == nil {
						continue
					}
					refs = append(refs, newRef(*rule.Name, "rule", h, region, map[string]any{"eventBusName": *bus.Name}))

					targetsOut, err := d.client.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{Rule: rule.Name, EventBusName: bus.Name})
					if err == nil {
						for _, target := range targetsOut.Targets {
							if target.Id == nil {
								continue
							}
							refs = append(refs, newRef(*target.Id, "rule-target", h, region, map[string]any{"ruleName": *rule.Name}))
						}
					}
				}
				if ruleOut.NextToken == nil {
					break
				}
				ruleToken = ruleOut.NextToken
			}
		}
		if busOut.NextToken == nil {
			break
		}
		busToken = busOut.NextToken
	}

	return refs, nil
}
