// Command bot trades hourly Bitcoin Up or Down markets on Polymarket from
// Coinbase BTC-USD volatility signals. Run the mapper first to pin the
// current market's token pair.
package main

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"poly-volbot/internal/clob"
	"poly-volbot/internal/coinbase"
	"poly-volbot/internal/config"
	"poly-volbot/internal/datalog"
	"poly-volbot/internal/marketws"
	"poly-volbot/internal/pricecache"
	"poly-volbot/internal/volbot"
)

const polygonChainID = 137

type args struct {
	configFile    string
	marketMapFile string
	dataDir       string
	clobHost      string
	coinbaseURL   string
	marketWsURL   string
	signatureType int
	apiNonce      uint64
}

func parseArgs() args {
	var a args
	flag.StringVar(&a.configFile, "config", "config_params.json", "Trading parameters file")
	flag.StringVar(&a.marketMapFile, "market-map", "market_map.json", "Market map written by the mapper")
	flag.StringVar(&a.dataDir, "data-dir", "data", "Session data log directory (empty disables)")
	flag.StringVar(&a.clobHost, "clob-url", "", "CLOB API base URL (default https://clob.polymarket.com)")
	flag.StringVar(&a.coinbaseURL, "coinbase-url", coinbase.DefaultURL, "Coinbase websocket feed URL")
	flag.StringVar(&a.marketWsURL, "market-ws-url", marketws.DefaultURL, "Polymarket market websocket URL")
	flag.IntVar(&a.signatureType, "signature-type", 2, "Signature type: 0=EOA, 1=POLY_PROXY, 2=POLY_GNOSIS_SAFE")
	flag.Uint64Var(&a.apiNonce, "api-nonce", 0, "Nonce for API key derive/create")
	flag.Parse()
	return a
}

type bot struct {
	params     config.Params
	market     config.MarketMap
	client     *clob.Client
	cache      *pricecache.Cache
	events     *datalog.Logger
	manager    *volbot.Manager
	executor   *volbot.Executor
	controller *volbot.Controller
	feed       *coinbase.Feed
	stream     *marketws.Stream

	// Open positions as last listed by the 'x' command, so "x 2" can
	// refer back to them by number.
	exitMenu []volbot.Position
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	a := parseArgs()

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	params, err := config.LoadParams(a.configFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	market, err := config.LoadMarketMap(a.marketMapFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	pk, err := parsePrivateKey(env.PrivateKeyHex)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	clobHost := a.clobHost
	if clobHost == "" {
		clobHost = env.ClobHost
	}
	client, err := clob.NewClient(clobHost, polygonChainID, pk, common.HexToAddress(env.FunderAddress), a.signatureType)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Printf("Shutting down...")
		cancel()
	}()

	creds, err := client.CreateOrDeriveApiKey(ctx, a.apiNonce)
	if err != nil {
		log.Fatalf("[fatal] failed to create/derive api key: %v", err)
	}
	client.SetApiCreds(creds)
	log.Printf("CLOB API creds ready (key=%s…)", prefix(creds.Key, 8))

	if err := client.WarmUp(ctx); err != nil {
		log.Printf("[warn] clob warm-up: %v", err)
	}

	events := datalog.New(a.dataDir)
	cache := pricecache.New(params.CacheStaleMs)
	tokens := volbot.TokenPair{Up: market.UpTokenID, Down: market.DownTokenID}

	manager := volbot.NewManager(client, cache, events, params)
	executor := volbot.NewExecutor(client, cache, manager, events, tokens, params)
	controller := volbot.NewController(client, cache, executor, manager, events, tokens, params)

	manager.OnExitComplete = func(p volbot.Position) {
		if p.ExitPrice > 0 {
			log.Printf("[info] position %s closed (%s): P&L $%+.2f (%+.1f%%)",
				p.ID, p.ExitReason, p.PnL(p.ExitPrice), p.PnLPct(p.ExitPrice))
		} else {
			log.Printf("[info] position %s closed (%s), no fill data", p.ID, p.ExitReason)
		}
	}

	b := &bot{
		params:     params,
		market:     market,
		client:     client,
		cache:      cache,
		events:     events,
		manager:    manager,
		executor:   executor,
		controller: controller,
		stream:     marketws.NewStream(a.marketWsURL, []string{market.UpTokenID, market.DownTokenID}, cache),
	}
	b.stream.OnPrice = func(assetID string, bestBid, _ float64) {
		manager.CheckExitConditions(ctx, assetID, bestBid)
	}
	b.stream.OnConnect = func() { log.Printf("[info] market stream connected") }
	b.stream.OnDisconnect = func() { log.Printf("[warn] market stream disconnected, reconnecting...") }
	b.feed = coinbase.NewFeed(coinbase.Options{
		URL:              a.coinbaseURL,
		TriggerThreshold: params.TriggerThreshold,
		WindowMs:         params.VolatilityWinMs,
		CooldownMs:       params.SignalCooldownMs,
	}, func(sig coinbase.Signal) {
		controller.HandleSignal(ctx, sig)
	})
	b.feed.OnConnect = func() { log.Printf("[info] coinbase feed connected") }
	b.feed.OnDisconnect = func() { log.Printf("[warn] coinbase feed disconnected, reconnecting...") }

	log.Printf("Market: %s", market.EventTitle)
	log.Printf("  Position size: $%.2f | TP %.1f%% | SL %.1f%%",
		params.PositionSize, params.TakeProfitPct*100, params.StopLossPct*100)
	log.Printf("  Trigger threshold: %.3f%% over %dms, cooldown %dms",
		params.TriggerThreshold*100, params.VolatilityWinMs, params.SignalCooldownMs)
	log.Printf("  Max spread: %.0fc | stale exit after %.1fs",
		params.MaxSpreadCents, params.StalePositionSec)

	events.Log(volbot.SessionStartEvent{Type: "session_start", Config: params, Market: market})

	go b.stream.Run(ctx)
	go b.feed.Run(ctx)
	go b.commandLoop(ctx, cancel)

	log.Printf("Bot ready. Commands: u=buy UP, d=buy DOWN, k=kill switch, x=exit menu, s=status, q=quit")
	<-ctx.Done()

	b.shutdown()
}

func (b *bot) shutdown() {
	// Exits already in flight get to finish against a fresh context.
	b.manager.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := b.client.CancelAllOrders(ctx); err != nil {
		log.Printf("[warn] cancel open orders: %v", err)
	}

	b.events.Log(volbot.SessionEndEvent{
		Type:          "session_end",
		TotalPnL:      b.manager.TotalPnL(),
		TradeCount:    b.manager.ClosedCount(),
		OpenRemaining: len(b.manager.OpenPositions()),
	})
	if err := b.events.Close(); err != nil {
		log.Printf("[warn] data log close: %v", err)
	}

	if pnl := b.manager.TotalPnL(); pnl != 0 {
		log.Printf("Session realized P&L: $%+.2f", pnl)
	}
	log.Printf("Goodbye.")
}

// commandLoop reads line commands from stdin until the context ends.
func (b *bot) commandLoop(ctx context.Context, cancel context.CancelFunc) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(strings.ToLower(sc.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "u":
			b.manualEntry(ctx, coinbase.DirectionUp)
		case "d":
			b.manualEntry(ctx, coinbase.DirectionDown)
		case "k":
			b.toggleAuto()
		case "x":
			b.exitCommand(ctx, fields)
		case "s":
			b.showStatus(ctx)
		case "q":
			cancel()
			return
		default:
			fmt.Println("commands: u, d, k, x [n], s, q")
		}
	}
}

func (b *bot) manualEntry(ctx context.Context, d coinbase.Direction) {
	log.Printf("Placing buy %s order...", d)
	res := b.executor.ExecuteEntry(ctx, d)
	if !res.Success {
		log.Printf("[warn] order failed: %s", res.ErrorMsg)
		return
	}
	log.Printf("Bought %.2f shares %s at $%.2f", res.FilledShares, d, res.FillPrice)
	if p := res.Position; p != nil {
		log.Printf("  TP: $%.2f | SL: $%.2f", p.TakeProfit, p.StopLoss)
	}
	if res.PartialFill {
		log.Printf("  (partial fill, rest cancelled)")
	}
}

func (b *bot) toggleAuto() {
	if b.controller.Enabled() {
		b.controller.Disable()
		b.feed.Pause()
		log.Printf("Auto-signals PAUSED (manual u/d still works)")
	} else {
		b.controller.Enable()
		b.feed.Resume()
		log.Printf("Auto-signals RESUMED")
	}
}

// exitCommand lists open positions on "x" and closes one on "x <n>".
func (b *bot) exitCommand(ctx context.Context, fields []string) {
	if len(fields) == 1 {
		b.exitMenu = b.manager.OpenPositions()
		if len(b.exitMenu) == 0 {
			fmt.Println("No open positions to exit")
			return
		}
		fmt.Println("Open positions ('x <n>' to close, 'x 0' to cancel):")
		for i, p := range b.exitMenu {
			fmt.Printf("  %d) %s\n", i+1, b.positionSummary(p))
		}
		return
	}

	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 || n > len(b.exitMenu) {
		fmt.Println("invalid selection")
		return
	}
	if n == 0 {
		b.exitMenu = nil
		fmt.Println("Cancelled.")
		return
	}
	p := b.exitMenu[n-1]
	b.exitMenu = nil

	fmt.Printf("Closing position %s...\n", p.ID)
	if !b.executor.ExecuteExit(ctx, p.ID) {
		log.Printf("[warn] failed to initiate exit for %s", p.ID)
	}
}

func (b *bot) showStatus(ctx context.Context) {
	fmt.Printf("\n=== STATUS ===\n")
	fmt.Printf("  Market: %s\n", b.market.EventTitle)

	auto := "active"
	if !b.controller.Enabled() {
		auto = "PAUSED"
	}
	cb := "disconnected"
	if b.feed.Connected() {
		cb = "connected"
		if price, ok := b.feed.LastPrice(); ok {
			cb = fmt.Sprintf("connected, BTC $%.2f", price)
		}
	}
	mkt := "disconnected"
	if b.stream.Connected() {
		mkt = "connected"
	}
	fmt.Printf("  Coinbase: %s | Market stream: %s | Auto-signals: %s\n", cb, mkt, auto)

	if pnl := b.manager.TotalPnL(); pnl != 0 {
		fmt.Printf("  Realized P&L: $%+.2f\n", pnl)
	}
	if stats := b.manager.TradeStats(); stats.Total > 0 {
		fmt.Printf("  Trades: %d  |  W: %d  L: %d  BE: %d  |  Win rate: %.1f%%\n",
			stats.Total, stats.Wins, stats.Losses, stats.Breakevens, stats.WinRate)
	}

	fmt.Printf("  UP price:   %s\n", b.priceLine(ctx, b.market.UpTokenID))
	fmt.Printf("  DOWN price: %s\n", b.priceLine(ctx, b.market.DownTokenID))

	open := b.manager.OpenPositions()
	if len(open) == 0 {
		fmt.Printf("  No open positions\n\n")
		return
	}
	fmt.Printf("  Open positions:\n")
	for _, p := range open {
		fmt.Printf("    %s\n", b.positionSummary(p))
	}
	fmt.Println()
}

func (b *bot) priceLine(ctx context.Context, tokenID string) string {
	bid, ok := b.cache.BestBid(tokenID)
	if !ok {
		if restBid, _, err := b.client.BestPrices(ctx, tokenID); err == nil && restBid > 0 {
			bid = restBid
			ok = true
		}
	}
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", bid)
}

func (b *bot) positionSummary(p volbot.Position) string {
	if bid, ok := b.cache.BestBid(p.TokenID); ok {
		return fmt.Sprintf("%s: %s %.2f @ $%.2f -> $%.2f (%+.1f%%)",
			p.ID, p.Direction, p.Shares, p.EntryPrice, bid, p.PnLPct(bid))
	}
	return fmt.Sprintf("%s: %s %.2f @ $%.2f (price unavailable)", p.ID, p.Direction, p.Shares, p.EntryPrice)
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key required")
	}
	return crypto.HexToECDSA(hexKey)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
