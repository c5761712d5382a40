package hook

// Standard extension point names exposed by the trading host. Plugins
// may declare additional hooks; these are the ones the core always
// registers so handlers can bind before the owning subsystem starts.
const (
	SystemStartup      = "system.startup"
	SystemShutdown     = "system.shutdown"
	SystemConfigLoaded = "system.config_loaded"

	MarketDataReceived = "market.data_received"
	MarketTickReceived = "market.tick_received"
	MarketBarReceived  = "market.bar_received"
	MarketBarGenerated = "market.bar_generated"

	TradingPreOrder           = "trading.pre_order"
	TradingPostOrder          = "trading.post_order"
	TradingOrderStatusChanged = "trading.order_status_changed"
	TradingTradeExecuted      = "trading.trade_executed"
	TradingPositionChanged    = "trading.position_changed"
	TradingAccountChanged     = "trading.account_changed"

	StrategyPreInit   = "strategy.pre_init"
	StrategyPostInit  = "strategy.post_init"
	StrategyPreStart  = "strategy.pre_start"
	StrategyPostStart = "strategy.post_start"
	StrategyPreStop   = "strategy.pre_stop"
	StrategyPostStop  = "strategy.post_stop"
	StrategyError     = "strategy.error"

	RiskCheck         = "risk.check"
	RiskRuleTriggered = "risk.rule_triggered"
	RiskPositionRisk  = "risk.position_risk"

	PerformanceStats = "performance.stats"

	StoragePrePersist  = "storage.pre_persist"
	StoragePostPersist = "storage.post_persist"
	StorageDataLoaded  = "storage.data_loaded"

	UIRefresh = "ui.refresh"
	UIEvent   = "ui.event"
)

// Catalog returns the standard hook specifications. Gating hooks
// (pre-order, risk check, strategy pre-start/stop) are sequential so a
// handler can veto by returning false; data fan-out hooks are
// best-effort broadcasts.
func Catalog() []Spec {
	return []Spec{
		{Name: SystemStartup, Description: "host startup complete", Params: []string{"config"}, Sequential: true},
		{Name: SystemShutdown, Description: "host shutting down", Params: []string{"exit_code"}, Sequential: true},
		{Name: SystemConfigLoaded, Description: "configuration loaded", Params: []string{"config"}, Sequential: true},

		{Name: MarketDataReceived, Description: "raw market data received", Params: []string{"data", "source"}, Sequential: true},
		{Name: MarketTickReceived, Description: "tick received", Params: []string{"tick", "symbol"}, Async: true},
		{Name: MarketBarReceived, Description: "bar received", Params: []string{"bar", "symbol", "period"}, Async: true},
		{Name: MarketBarGenerated, Description: "bar generated from ticks", Params: []string{"bar", "symbol", "period"}, Sequential: true},

		{Name: TradingPreOrder, Description: "before order placement; false cancels the order", Params: []string{"order", "account"}, Sequential: true, Required: true},
		{Name: TradingPostOrder, Description: "after order placement", Params: []string{"order", "result"}, Sequential: true},
		{Name: TradingOrderStatusChanged, Description: "order status transition", Params: []string{"order", "previous", "current"}, Sequential: true},
		{Name: TradingTradeExecuted, Description: "trade executed", Params: []string{"trade", "order"}, Sequential: true},
		{Name: TradingPositionChanged, Description: "position changed", Params: []string{"position", "account", "change"}, Sequential: true},
		{Name: TradingAccountChanged, Description: "account changed", Params: []string{"account", "changes"}, Sequential: true},

		{Name: StrategyPreInit, Description: "before strategy init", Params: []string{"strategy", "config"}, Sequential: true},
		{Name: StrategyPostInit, Description: "after strategy init", Params: []string{"strategy"}, Sequential: true},
		{Name: StrategyPreStart, Description: "before strategy start; false blocks the start", Params: []string{"strategy"}, Sequential: true},
		{Name: StrategyPostStart, Description: "after strategy start", Params: []string{"strategy"}, Sequential: true},
		{Name: StrategyPreStop, Description: "before strategy stop; false blocks the stop", Params: []string{"strategy", "reason"}, Sequential: true},
		{Name: StrategyPostStop, Description: "after strategy stop", Params: []string{"strategy", "stats"}, Sequential: true},
		{Name: StrategyError, Description: "strategy raised an error", Params: []string{"strategy", "error", "context"}, Sequential: true},

		{Name: RiskCheck, Description: "risk gate; false rejects the action", Params: []string{"context", "account", "positions"}, Sequential: true, Required: true},
		{Name: RiskRuleTriggered, Description: "risk rule fired", Params: []string{"rule", "trigger_value", "account"}, Sequential: true},
		{Name: RiskPositionRisk, Description: "position risk evaluation", Params: []string{"position", "account", "risk_metrics"}, Sequential: true},

		{Name: PerformanceStats, Description: "performance statistics collected", Params: []string{"stats", "context"}, Sequential: true},

		{Name: StoragePrePersist, Description: "before persisting a record", Params: []string{"data", "store", "key"}, Sequential: true},
		{Name: StoragePostPersist, Description: "after persisting a record", Params: []string{"result", "data", "store", "key"}, Sequential: true},
		{Name: StorageDataLoaded, Description: "record loaded from storage", Params: []string{"data", "store", "key"}, Sequential: true},

		{Name: UIRefresh, Description: "UI refresh requested", Params: []string{"context", "data"}},
		{Name: UIEvent, Description: "UI event raised", Params: []string{"event", "source"}},
	}
}

// RegisterCatalog installs the standard specifications into a registry.
func RegisterCatalog(r *Registry) {
	for _, spec := range Catalog() {
		r.RegisterSpec(spec)
	}
}
