package flow

import (
	"fmt"

	"github.com/machinepilot/machinepilot/internal/models"
)

// Step ids for the machine onboarding conversation. These are contract with
// the UI and with the chat API.
const (
	StepWelcome         models.StepID = "welcome"
	StepUserInfo        models.StepID = "user-info"
	StepLogin           models.StepID = "login"
	StepOTP             models.StepID = "otp"
	StepOTPVerified     models.StepID = "otp-verified"
	StepModeSelect      models.StepID = "mode-select"
	StepDemoSpawn       models.StepID = "demo-spawn"
	StepDemoReady       models.StepID = "demo-ready"
	StepLiveIntro       models.StepID = "live-intro"
	StepLiveSpawn       models.StepID = "live-spawn"
	StepLiveCredentials models.StepID = "live-credentials"
	StepInviteUsers     models.StepID = "invite-users"
	StepNotifications   models.StepID = "notifications"
	StepTestTicket      models.StepID = "test-ticket"
	StepHandoff         models.StepID = "handoff"
	StepDone            models.StepID = "done"
	StepResetRequest    models.StepID = "reset-request"
	StepResetSent       models.StepID = "reset-sent"
	StepResetComplete   models.StepID = "reset-complete"
)

// DefaultProfileKey is the fallback workspace key rendered before an account
// has a provisioned key.
const DefaultProfileKey = "123445678888"

// OnboardingCatalog builds the scripted machine-onboarding conversation.
func OnboardingCatalog() (*Catalog, error) {
	steps := []Step{
		{
			ID:    StepWelcome,
			Actor: models.ActorAssistant,
			Message: Text("Hi, I'm Pilot 👋 — I'll get your first machine onto the monitoring platform in a couple of minutes."),
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepUserInfo},
			},
		},
		{
			ID:         StepUserInfo,
			Actor:      models.ActorAssistant,
			Message:    Text("First things first: what's your work email? I'll use it to set up your workspace."),
			Widget:     &models.Widget{Type: "email-form"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {
					Action: ActionRegisterEmail,
					TargetFn: func(fc *models.FlowContext) models.StepID {
						if fc.AccountExists && fc.Verified {
							return StepLogin
						}
						return StepOTP
					},
				},
			},
		},
		{
			ID:         StepLogin,
			Actor:      models.ActorAssistant,
			Message:    Text("Welcome back! That email already has a workspace — enter your password to pick up where you left off."),
			Widget:     &models.Widget{Type: "password-form"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionLogin, To: StepModeSelect},
				models.EventForgot: {To: StepResetRequest},
			},
		},
		{
			ID:    StepOTP,
			Actor: models.ActorAssistant,
			Message: func(fc *models.FlowContext) string {
				return fmt.Sprintf("I've sent a 6-digit code to %s. Type it in below to verify your email.", fc.Email)
			},
			Widget:     &models.Widget{Type: "otp-input", Data: map[string]interface{}{"length": 6}},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionValidateOTP, To: StepOTPVerified},
				models.EventResend: {Action: ActionResendOTP},
			},
		},
		{
			ID:      StepOTPVerified,
			Actor:   models.ActorAssistant,
			Message: Text("That's a match — your email is verified. ✅"),
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepModeSelect},
			},
		},
		{
			ID:    StepModeSelect,
			Actor: models.ActorAssistant,
			Message: func(fc *models.FlowContext) string {
				key := fc.ProfileKey
				if key == "" {
					key = DefaultProfileKey
				}
				return fmt.Sprintf("Your workspace key is %s. Want to explore with a simulated demo machine, or connect a live machine right away?", key)
			},
			Widget: &models.Widget{Type: "choice", Data: map[string]interface{}{
				"options": []string{string(models.ModeDemo), string(models.ModeLive)},
			}},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSelect: {
					Action: ActionSelectMode,
					TargetFn: func(fc *models.FlowContext) models.StepID {
						if fc.Mode == models.ModeLive {
							return StepLiveIntro
						}
						return StepDemoSpawn
					},
				},
			},
		},
		{
			ID:      StepDemoSpawn,
			Actor:   models.ActorAssistant,
			Message: Text("Spinning up a simulated machine for you…"),
			Widget:  &models.Widget{Type: "spinner"},
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {Action: ActionSpawnDemoDevice, To: StepDemoReady},
				// Re-runs the spawn without leaving the step, for retries.
				models.EventRetry: {Action: ActionSpawnDemoDevice},
			},
		},
		{
			ID:    StepDemoReady,
			Actor: models.ActorAssistant,
			Message: func(fc *models.FlowContext) string {
				return fmt.Sprintf("Your demo machine %s is online and streaming sample telemetry. 📈", fc.DeviceID)
			},
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepInviteUsers},
			},
		},
		{
			ID:      StepLiveIntro,
			Actor:   models.ActorAssistant,
			Message: Text("Great — let's hook up your machine. I'm provisioning broker credentials for it now."),
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepLiveSpawn},
			},
		},
		{
			// Processing step: no message, no widget, just the side effect.
			ID:    StepLiveSpawn,
			Actor: models.ActorAssistant,
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {Action: ActionSpawnLiveDevice, To: StepLiveCredentials},
			},
		},
		{
			ID:    StepLiveCredentials,
			Actor: models.ActorAssistant,
			Message: func(fc *models.FlowContext) string {
				if fc.MQTT == nil {
					return "Your device credentials are ready."
				}
				return fmt.Sprintf(
					"Here are your device credentials. Point your machine at %s:%d, publish to %s, and telemetry will start flowing.",
					fc.MQTT.BrokerEndpoint, fc.MQTT.BrokerPort, fc.MQTT.Topic,
				)
			},
			Widget:     &models.Widget{Type: "credentials-card"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepInviteUsers},
			},
		},
		{
			ID:         StepInviteUsers,
			Actor:      models.ActorAssistant,
			Message:    Text("Want to bring your team along? Add their emails and I'll invite them to the workspace."),
			Widget:     &models.Widget{Type: "invite-form"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionAddUsers, To: StepNotifications},
				models.EventSkip:   {To: StepNotifications},
			},
		},
		{
			ID:         StepNotifications,
			Actor:      models.ActorAssistant,
			Message:    Text("Should I send you alert notifications when a machine needs attention?"),
			Widget:     &models.Widget{Type: "toggle"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionSubscribeNotifs, To: StepTestTicket},
			},
		},
		{
			ID:         StepTestTicket,
			Actor:      models.ActorAssistant,
			Message:    Text("One last thing — want me to open a test maintenance ticket so you can see the support pipeline end to end?"),
			Widget:     &models.Widget{Type: "choice", Data: map[string]interface{}{"options": []string{"yes", "no"}}},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionCreateTestTicket, To: StepHandoff},
				models.EventSkip:   {To: StepHandoff},
			},
		},
		{
			ID:      StepHandoff,
			Actor:   models.ActorAssistant,
			Message: Text("All set. Moving this conversation into your workspace and taking you to the dashboard…"),
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {Action: ActionTransferSession, To: StepDone},
			},
		},
		{
			ID:          StepDone,
			Actor:       models.ActorAssistant,
			Message:     Text("You're onboarded! 🎉 Your machines, alerts and tickets are waiting on the dashboard."),
			AwaitInput:  true,
			Transitions: map[models.EventType]Transition{},
		},
		{
			ID:         StepResetRequest,
			Actor:      models.ActorAssistant,
			Message:    Text("No problem. Confirm your email and I'll send a password reset link."),
			Widget:     &models.Widget{Type: "email-form"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionSendReset, To: StepResetSent},
			},
		},
		{
			ID:    StepResetSent,
			Actor: models.ActorAssistant,
			Message: func(fc *models.FlowContext) string {
				return fmt.Sprintf("I've emailed a reset link to %s. Choose a new password below (the link is good for an hour).", fc.Email)
			},
			Widget:     &models.Widget{Type: "password-form"},
			AwaitInput: true,
			Transitions: map[models.EventType]Transition{
				models.EventSubmit: {Action: ActionCompleteReset, To: StepResetComplete},
			},
		},
		{
			ID:      StepResetComplete,
			Actor:   models.ActorAssistant,
			Message: Text("Password updated — you're signed in. ✅"),
			Transitions: map[models.EventType]Transition{
				models.EventContinue: {To: StepModeSelect},
			},
		},
	}

	return NewCatalog(StepWelcome, steps)
}
