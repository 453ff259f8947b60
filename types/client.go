package types

import "fmt"

// ClientConfig is one tenant's registry entry
type ClientConfig struct {
	ID             string            `json:"id" yaml:"id" bson:"client"`
	Schedule       string            `json:"schedule" yaml:"schedule" bson:"cron"`
	TopicQuery     string            `json:"topic_query" yaml:"topic_query" bson:"topic_query"`
	NLPEnabled     bool              `json:"nlp" yaml:"nlp" bson:"nlp"`
	DeliveryTarget string            `json:"delivery_target" yaml:"delivery_target" bson:"send_to"`
	CredentialsRef string            `json:"credentials_ref,omitempty" yaml:"credentials_ref,omitempty" bson:"credentials_ref,omitempty"`
	Source         string            `json:"source,omitempty" yaml:"source,omitempty" bson:"source,omitempty"`
	SourceParams   map[string]string `json:"source_params,omitempty" yaml:"source_params,omitempty" bson:"newscatcher_params,omitempty"`
}

// TaskName is the name of the schedule entry that triggers this client's runs
func (c ClientConfig) TaskName() string {
	return TaskName(c.ID)
}

// SecretRef returns the secret id holding the client's delivery credentials
func (c ClientConfig) SecretRef() string {
	if c.CredentialsRef != "" {
		return c.CredentialsRef
	}
	return fmt.Sprintf("clients/%s", c.ID)
}

// TaskName builds the schedule entry name for a client id
func TaskName(clientID string) string {
	return "task_for_" + clientID
}
