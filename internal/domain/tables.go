package domain

var Tables = []interface{}{
	// System
	&SysMetric{},
	&SysOprLog{},
	// Subscription
	&Subscriber{},
	// WhatsApp
	&WhatsAppSessionLog{},
}
