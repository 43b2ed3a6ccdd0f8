package builder

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/rules"
	"github.com/crmoraes/nga/internal/scanner"
)

type fixture struct {
	agent *models.Agent
	decls *Declarations
	col   *scanner.Collector
}

type testingT interface {
	require.TestingT
	Helper()
}

func buildFixture(t testingT, src string) (fixture, error) {
	t.Helper()
	r := rules.Default()
	sc, err := scanner.New(r)
	require.NoError(t, err)
	doc, err := export.Parse([]byte(src))
	require.NoError(t, err)

	col := sc.NewCollector()
	agent, decls, err := New(r).Build(doc, col)
	return fixture{agent: agent, decls: decls, col: col}, err
}

func mustBuild(t *testing.T, src string) fixture {
	t.Helper()
	f, err := buildFixture(t, src)
	require.NoError(t, err)
	return f
}

const orderExport = `{
  "id": "0Xx000000000001",
  "name": "Order_Agent",
  "label": "Order Agent",
  "description": "Helps #Internal# customers   with orders",
  "plannerRole": "You help customers.",
  "plannerCompany": "Acme sells widgets.",
  "plannerToneType": "formal",
  "userLocation": "Paris",
  "secondaryLocales": ["fr", " ", "de"],
  "plugins": [
    {"name": "Ignored", "pluginType": "FUNCTION"},
    {
      "name": "Order Status",
      "localDevName": "Order_Status",
      "label": "Order Status",
      "description": "Order questions.",
      "scope": "Answer for {!$CustomerName} only.",
      "pluginType": "TOPIC",
      "canEscalate": true,
      "instructionDefinitions": [
        {"description": "Ask for the order number.\n\nAsk for the order number."},
        {"description": "Never guess."}
      ],
      "functions": [
        {
          "name": "Get_Order",
          "label": "Get Order",
          "description": "Fetches an order.",
          "invocationTargetType": "flow",
          "invocationTargetName": "172Kc000000PELdIAO",
          "source": "172Kc000000PELdIAO",
          "progressIndicatorMessage": "Looking up {$OrderId}",
          "inputType": {
            "required": ["Input:OrderId"],
            "properties": {
              "Input:OrderId": {"type": "string", "title": "Order Id"},
              "mode": {"type": "string", "copilotAction:isUserInput": false, "const": "fast"},
              "Input:Lines": {"type": "array", "items": {"type": "object"}, "lightning:type": "lightning__listType"}
            }
          },
          "outputType": {
            "properties": {
              "Output:Status": {"type": "string", "description": "Current status"},
              "Output:Record": {"type": "object", "copilotAction:isDisplayable": true}
            }
          }
        },
        {
          "name": "Cancel_Order",
          "source": "Cancel_Order_Flow",
          "invocationTargetType": "flow",
          "invocationTargetName": "Cancel_Order_Flow"
        }
      ]
    }
  ]
}`

func TestBuildSystem(t *testing.T) {
	f := mustBuild(t, orderExport)
	a := f.agent

	assert.Equal(t, models.ShapeVendor, a.Shape)
	assert.Equal(t, "You help customers. Acme sells widgets. Maintain a formal and professional tone. User location: Paris.", a.Persona.Instructions)
	assert.Equal(t, "FORMAL", a.Persona.Tone)
	assert.Equal(t, "Hi, I'm Order Agent. How can I help you today?", a.Messages.Welcome)
	assert.Equal(t, "Sorry, it looks like something has gone wrong.", a.Messages.Error)
	assert.Equal(t, "Order Agent", a.Identity.Label)
	assert.Equal(t, "ORDER_AGENT", a.Identity.DeveloperName)
	assert.Equal(t, "agentforce_service_agent@0Xx000000000001.ext", a.Identity.DefaultUser)
	assert.Equal(t, "Helps customers with orders", a.Identity.Description)
	assert.Equal(t, "en_US", a.Locale.Default)
	assert.Equal(t, []string{"fr", "de"}, a.Locale.Additional)
	assert.Equal(t, models.ConnectionMessaging, a.Connection.Kind)
	assert.True(t, a.Connection.AdaptiveResponseAllowed)
}

func TestBuildVendorTopic(t *testing.T) {
	f := mustBuild(t, orderExport)
	require.Len(t, f.agent.Topics, 1)
	topic := f.agent.Topics[0]

	assert.Equal(t, "order_status", topic.Key)
	assert.Equal(t, "Order Status", topic.Label)
	assert.Equal(t, "Order questions. Answer for {!@variables.CustomerName} only.", topic.Description)
	assert.Equal(t, []string{
		"Answer for {!@variables.CustomerName} only.",
		"Ask for the order number.",
		"Never guess.",
	}, topic.Instructions)
	assert.True(t, topic.CanEscalate)
	assert.Equal(t, []string{"Get_Order", "Cancel_Order"}, topic.Actions.Keys())
	assert.Equal(t, []string{"Get_Order", "Cancel_Order"}, topic.Reasoning.Keys())
}

func TestInstructionsSplitOnAnyLineBreak(t *testing.T) {
	f := mustBuild(t, `{"topics": [{"name": "t", "instructions": ["One\rTwo", "Three\r\nFour"]}]}`)
	assert.Equal(t, []string{"One", "Two", "Three", "Four"}, f.agent.Topics[0].Instructions)
}

func TestBuildVendorAction(t *testing.T) {
	f := mustBuild(t, orderExport)
	topic := f.agent.Topics[0]

	get, ok := topic.Actions.Get("Get_Order")
	require.True(t, ok)
	assert.Equal(t, "Fetches an order.", get.Description)
	assert.Equal(t, "Get Order", get.Label)
	assert.Equal(t, "flow://172Kc000000PELdIAO", get.Target)
	assert.Empty(t, get.Source, "opaque ids never become a source")
	assert.Equal(t, "Looking up {!@variables.OrderId}", get.ProgressMessage)

	assert.Equal(t, []string{"OrderId", "Lines"}, get.Inputs.Keys(), "inputs with isUserInput false are excluded")
	orderID, _ := get.Inputs.Get("OrderId")
	assert.True(t, orderID.IsRequired)
	assert.True(t, orderID.IsUserInput)
	assert.Equal(t, "Order Id", orderID.Label)
	assert.Equal(t, "Order Id", orderID.Description)
	assert.Equal(t, "lightning__textType", orderID.ComplexTypeName)

	lines, _ := get.Inputs.Get("Lines")
	assert.Equal(t, models.ListOf(models.TypeObject), lines.Type)
	assert.Equal(t, "lightning__recordInfoType", lines.ComplexTypeName)
	assert.False(t, lines.IsRequired)
	assert.False(t, lines.IsUserInput)

	status, _ := get.Outputs.Get("Status")
	assert.False(t, status.IsDisplayable)
	assert.True(t, status.IsUsedByPlanner)
	record, _ := get.Outputs.Get("Record")
	assert.True(t, record.IsDisplayable)
	assert.Equal(t, "lightning__recordInfoType", record.ComplexTypeName)

	ref, _ := topic.Reasoning.Get("Get_Order")
	assert.Equal(t, "@actions.Get_Order", ref.Target)
	assert.Equal(t, []string{"OrderId", "Lines"}, ref.Params)

	cancel, _ := topic.Actions.Get("Cancel_Order")
	assert.Equal(t, "Cancel_Order_Flow", cancel.Source)
	assert.Equal(t, "Cancel_Order", cancel.Description)
}

func TestUserInputFalseNeverReachesInputs(t *testing.T) {
	f := mustBuild(t, `{"plugins": [{"name": "t", "pluginType": "TOPIC", "functions": [{
	  "name": "Act",
	  "inputType": {"properties": {"mode": {"type": "string", "copilotAction:isUserInput": false}}}
	}]}]}`)
	act, _ := f.agent.Topics[0].Actions.Get("Act")
	assert.False(t, act.Inputs.Has("mode"))
	ref, _ := f.agent.Topics[0].Reasoning.Get("Act")
	assert.Empty(t, ref.Params)
}

func TestResolveVariables(t *testing.T) {
	f := mustBuild(t, orderExport)
	vars, unresolved := f.decls.Resolve(f.col.References())
	assert.Empty(t, unresolved)

	assert.Equal(t, []string{"CustomerName", "OrderId"}, vars.Keys())

	customer, _ := vars.Get("CustomerName")
	assert.Equal(t, models.VariableMutable, customer.Category)
	assert.Equal(t, models.TypeString, customer.Type)
	assert.Equal(t, "Variable CustomerName", customer.Description)

	orderID, _ := vars.Get("OrderId")
	assert.Equal(t, models.VariableMutable, orderID.Category)
	assert.Equal(t, "Order Id", orderID.Description)
	assert.Equal(t, "Order Id", orderID.Label)

	assert.Equal(t, []string{"CustomerName", "OrderId"}, f.col.Rewritten())
}

func TestResolveOutputVariables(t *testing.T) {
	f := mustBuild(t, `{"plugins": [{"name": "t", "pluginType": "TOPIC",
	  "scope": "Use {!@variables.Status} and {!@variables.Record} and {!@variables.Customer.Name}",
	  "functions": [{
	    "name": "Get_Order",
	    "outputType": {"properties": {
	      "Output:Status": {"type": "string"},
	      "Output:Record": {"type": "object"}
	    }}
	  }]}]}`)
	vars, unresolved := f.decls.Resolve(f.col.References())
	assert.Equal(t, []string{"Customer.Name"}, unresolved)

	status, _ := vars.Get("Status")
	assert.Equal(t, models.VariableLinked, status.Category)
	assert.Equal(t, "@action.Get_Order.Output:Status", status.Source)
	assert.Empty(t, status.RenderedSource())
	assert.Equal(t, "Output from Get_Order", status.Description)

	record, _ := vars.Get("Record")
	assert.Equal(t, models.VariableMutable, record.Category)
	assert.Empty(t, record.Source)
}

func TestDescriptionReferencesAreDeclared(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
		desc map[string]string
	}{
		{
			name: "explicit variable",
			src:  `{"variables": [{"name": "Email", "type": "string", "description": "Copy of {!$Backup}"}], "topics": [{"name": "t"}]}`,
			want: []string{"Email", "Backup"},
			desc: map[string]string{"Email": "Copy of {!@variables.Backup}", "Backup": "Variable Backup"},
		},
		{
			name: "schema candidate",
			src: `{"plugins": [{"name": "t", "pluginType": "TOPIC", "scope": "Use {!@variables.Mode}",
			  "functions": [{"name": "Get_Order", "inputType": {"properties": {
			    "Mode": {"type": "string", "description": "Depends on {!$Region}", "copilotAction:isUserInput": false}
			  }}}]}]}`,
			want: []string{"Mode", "Region"},
			desc: map[string]string{"Mode": "Depends on {!@variables.Region}", "Region": "Variable Region"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustBuild(t, tt.src)
			vars, unresolved := f.decls.Resolve(f.col.References())
			assert.Empty(t, unresolved)
			assert.Equal(t, tt.want, vars.Keys())
			for name, desc := range tt.desc {
				v, ok := vars.Get(name)
				require.True(t, ok, name)
				assert.Equal(t, desc, v.Description)
			}
		})
	}
}

func TestBuildSimplified(t *testing.T) {
	f := mustBuild(t, `
name: Helper
description: Helps
plannerToneType: CASUAL
variables:
  - name: Session
    type: object
    source: "@MessagingSession.Id"
  - name: Email
    type: string
    source: "@User.Email"
topics:
  - name: Billing Help
    scope: Invoices only.
    instructions: ["Check {$!Email}.", "Be brief."]
    actions:
      - name: Lookup Invoice
        type: flow
        invocationTarget: Lookup_Invoice
        source: Lookup_Invoice
        inputs:
          invoiceId: {type: string, required: true}
          hidden: {type: number, isUserInput: false}
        outputs:
          items: {type: "list[object]", complexType: lightning__listType}
      - name: Human
        type: escalate
      - name: go faq
        type: transition
        target: FAQ
  - id: FAQ
    reasoning: Answer common questions.
`)
	a := f.agent
	assert.Equal(t, models.ShapeSimplified, a.Shape)
	assert.Equal(t, "Helper", a.Identity.Label)
	assert.Equal(t, "You are an AI Agent. Maintain a casual and friendly tone.", a.Persona.Instructions)

	require.Len(t, a.Topics, 2)
	billing := a.Topics[0]
	assert.Equal(t, "billing_help", billing.Key)
	assert.Equal(t, "Billing Help", billing.Label)
	assert.Equal(t, "Invoices only.", billing.Description)
	assert.Equal(t, []string{"Invoices only.", "Check {!@variables.Email}.", "Be brief."}, billing.Instructions)
	assert.True(t, billing.CanEscalate)
	assert.Equal(t, []string{"Lookup_Invoice"}, billing.Actions.Keys())
	assert.Equal(t, []string{"Lookup_Invoice", "go_to_faq"}, billing.Reasoning.Keys())

	lookup, _ := billing.Actions.Get("Lookup_Invoice")
	assert.Equal(t, "flow://Lookup_Invoice", lookup.Target)
	assert.Equal(t, "Lookup_Invoice", lookup.Source)
	assert.Equal(t, []string{"invoiceId"}, lookup.Inputs.Keys())
	items, _ := lookup.Outputs.Get("items")
	assert.Equal(t, models.ListOf(models.TypeObject), items.Type)
	assert.Equal(t, "lightning__recordInfoType", items.ComplexTypeName)

	transition, _ := billing.Reasoning.Get("go_to_faq")
	assert.Equal(t, models.RefTransition, transition.Kind)
	assert.Equal(t, "@utils.transition to @topic.faq", transition.Target)

	faq := a.Topics[1]
	assert.Equal(t, "faq", faq.Key)
	assert.Equal(t, "Faq", faq.Label)
	assert.Equal(t, "Handles FAQ requests", faq.Description)
	assert.Equal(t, []string{"Answer common questions."}, faq.Instructions)

	vars, _ := f.decls.Resolve(f.col.References())
	assert.Equal(t, []string{"Session", "Email"}, vars.Keys())
	session, _ := vars.Get("Session")
	assert.Equal(t, models.VariableMutable, session.Category)
	email, _ := vars.Get("Email")
	assert.Equal(t, models.VariableLinked, email.Category)
	assert.Equal(t, "@User.Email", email.RenderedSource())
}

func TestBuildGeneric(t *testing.T) {
	f := mustBuild(t, `{"plannerToneType":"CASUAL","welcomeMessage":"Hi there"}`)
	a := f.agent
	assert.Equal(t, models.ShapeGeneric, a.Shape)
	assert.Empty(t, a.Topics)
	assert.True(t, strings.HasSuffix(a.Persona.Instructions, "Maintain a casual and friendly tone."))
	assert.Equal(t, "Hi there", a.Messages.Welcome)
	assert.Equal(t, "Custom Agent", a.Identity.Label)
	assert.Equal(t, "AGENT", a.Identity.DeveloperName)
	assert.Equal(t, "Service Agent", a.Identity.Description)
	assert.Equal(t, "agentforce_service_agent@example.ext", a.Identity.DefaultUser)
}

func TestVoiceConnection(t *testing.T) {
	f := mustBuild(t, `{"voiceConfig": {"voice": "x"}}`)
	assert.Equal(t, models.ConnectionVoice, f.agent.Connection.Kind)
}

func TestCollisions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
		path string
	}{
		{
			"vendor topics",
			`{"plugins": [{"name": "Order Status", "pluginType": "TOPIC"}, {"name": "order_status", "pluginType": "TOPIC"}]}`,
			ErrTopicKeyCollision, "plugins[1]",
		},
		{
			"simplified topics",
			`{"topics": [{"name": "FAQ"}, {"id": "faq"}]}`,
			ErrTopicKeyCollision, "topics[1]",
		},
		{
			"vendor actions",
			`{"plugins": [{"name": "t", "pluginType": "TOPIC", "functions": [{"name": "Get Order"}, {"name": "Get-Order"}]}]}`,
			ErrActionNameCollision, "plugins[0].functions[1]",
		},
		{
			"simplified actions",
			`{"topics": [{"name": "t", "actions": [{"name": "a b"}, {"name": "a_b"}]}]}`,
			ErrActionNameCollision, "topics[0].actions[1]",
		},
		{
			"transition then action",
			`{"topics": [{"name": "t", "actions": [{"type": "transition", "target": "billing"}, {"name": "go_to_billing"}]}, {"name": "billing"}]}`,
			ErrActionNameCollision, "topics[0].actions[1]",
		},
		{
			"action then transition",
			`{"topics": [{"name": "t", "actions": [{"name": "go_to_billing"}, {"type": "transition", "target": "billing"}]}, {"name": "billing"}]}`,
			ErrActionNameCollision, "topics[0].actions[1]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := buildFixture(t, tt.src)
			require.Error(t, err)
			assert.Nil(t, f.agent)
			assert.True(t, errors.Is(err, tt.want))

			var ce *CollisionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.path, ce.Path)
		})
	}
}

func TestOnlyReferencedSchemaVariablesAreEmitted(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z][a-z]{2,8}`), 1, 6, rapid.ID[string]).Draw(rt, "names")

		props := make(map[string]any, len(names))
		var scope []string
		referenced := make(map[string]bool)
		for _, n := range names {
			props["Input:"+n] = map[string]any{"type": "string"}
			if rapid.Bool().Draw(rt, "ref_"+n) {
				referenced[n] = true
				if rapid.Bool().Draw(rt, "legacy_"+n) {
					scope = append(scope, "{!$"+n+"}")
				} else {
					scope = append(scope, "{!@variables."+n+"}")
				}
			}
		}
		doc := map[string]any{
			"plugins": []any{map[string]any{
				"name":       "t",
				"pluginType": "TOPIC",
				"scope":      strings.Join(scope, " and "),
				"functions": []any{map[string]any{
					"name":      "Act",
					"inputType": map[string]any{"properties": props},
				}},
			}},
		}
		src, err := json.Marshal(doc)
		if err != nil {
			rt.Fatal(err)
		}

		f, err := buildFixture(rt, string(src))
		if err != nil {
			rt.Fatal(err)
		}
		vars, _ := f.decls.Resolve(f.col.References())
		for _, n := range names {
			if referenced[n] != vars.Has(n) {
				rt.Fatalf("variable %s: referenced=%v emitted=%v", n, referenced[n], vars.Has(n))
			}
		}
		if vars.Len() != len(referenced) {
			rt.Fatalf("emitted %d variables for %d references", vars.Len(), len(referenced))
		}
	})
}
