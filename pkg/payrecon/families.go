package payrecon

// Per-family constructors. Each entity family gets its own use case so
// deployments can route each webhook endpoint to the right processor
// instance; the orchestration itself is shared and knows nothing about
// any particular family.

// NewEnrollmentUseCase builds the use case for 2026-cycle enrollments.
func NewEnrollmentUseCase(store Store, gateway Gateway, config Config) (*UseCase, error) {
	return newUseCase(KindEnrollment2026, "enrollment2026", store, gateway, config)
}

// NewSubscriptionUseCase builds the use case for recurring subscriptions.
func NewSubscriptionUseCase(store Store, gateway Gateway, config Config) (*UseCase, error) {
	return newUseCase(KindSubscription, "subscription", store, gateway, config)
}

// NewCourseEnrollmentUseCase builds the use case for per-course enrollments.
func NewCourseEnrollmentUseCase(store Store, gateway Gateway, config Config) (*UseCase, error) {
	return newUseCase(KindCourseEnrollment, "course", store, gateway, config)
}
