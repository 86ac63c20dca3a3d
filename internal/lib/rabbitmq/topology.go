package rabbitmq

const (
	// ExchangeRetention обменник сообщений процесса удаления данных.
	ExchangeRetention = "retention"
	// ExchangeAuth обменник сообщений сервиса учётных записей.
	ExchangeAuth = "auth"

	RoutingKeySummary       = "summary"
	RoutingKeyPasswordReset = "password_reset"

	QueueAdminSummary  = "retention.summary"
	QueuePasswordReset = "auth.password_reset"
)

// Binding привязка очереди к обменнику по ключу маршрутизации.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// Topology возвращает все привязки, используемые приложением.
func Topology() []Binding {
	return []Binding{
		{Exchange: ExchangeRetention, Queue: QueueAdminSummary, RoutingKey: RoutingKeySummary},
		{Exchange: ExchangeAuth, Queue: QueuePasswordReset, RoutingKey: RoutingKeyPasswordReset},
	}
}
