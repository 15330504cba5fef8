package mail

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

type SESConfig struct {
	From string
	To   []string
}
