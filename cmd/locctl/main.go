package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"loc-api/internal/api"
	"loc-api/internal/app"
	"loc-api/internal/backend"
	"loc-api/internal/cache"
	"loc-api/internal/config"
	"loc-api/internal/locations"
	"loc-api/internal/logger"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage")

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  states")
	fmt.Fprintln(w, "  districts <state>")
	fmt.Fprintln(w, "  sub-districts <state> <district>")
	fmt.Fprintln(w, "  villages <state> <district> <sub_district>")
	fmt.Fprintln(w, "  pins [state=..] [district=..] [sub_district=..] [village=..]")
	fmt.Fprintln(w, "  refresh")
	fmt.Fprintln(w, "  invalidate")
	fmt.Fprintln(w, "  cache-get [key]")
	fmt.Fprintln(w, "  help")
	fmt.Fprintln(w, "  exit")
	fmt.Fprintln(w, `names containing spaces must be quoted: districts "Andaman and Nicobar Islands"`)
}

// splitArgs：按空白切分，双引号内的空白保留
func splitArgs(line string) ([]string, error) {
	var (
		out    []string
		cur    strings.Builder
		quoted bool
		has    bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			has = true
		case !quoted && (r == ' ' || r == '\t'):
			if has {
				out = append(out, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
			has = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if has {
		out = append(out, cur.String())
	}
	return out, nil
}

func printResult(w io.Writer, res locations.Result) {
	for _, n := range res.Names {
		fmt.Fprintln(w, n)
	}
	if res.Degraded {
		fmt.Fprintf(w, "# degraded, failed sources: %s\n", strings.Join(res.FailedSources, ", "))
	}
	fmt.Fprintf(w, "# %d entries\n", len(res.Names))
}

// 文档注释：执行单条命令
// 约束：参数错误返回 errUsage；解析命令本身不会失败，只会输出降级标记。
func run(ctx context.Context, r api.Resolver, c cache.Store, args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch strings.ToLower(args[0]) {
	case "help":
		printHelp(w)
	case "states":
		printResult(w, r.ResolveStates(ctx))
	case "districts":
		if len(args) != 2 {
			return errUsage
		}
		printResult(w, r.ResolveDistricts(ctx, args[1]))
	case "sub-districts":
		if len(args) != 3 {
			return errUsage
		}
		printResult(w, r.ResolveSubDistricts(ctx, args[1], args[2]))
	case "villages":
		if len(args) != 4 {
			return errUsage
		}
		printResult(w, r.ResolveVillages(ctx, args[1], args[2], args[3]))
	case "pins":
		var q locations.PinQuery
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return errUsage
			}
			switch k {
			case "state":
				q.State = v
			case "district":
				q.District = v
			case "sub_district":
				q.SubDistrict = v
			case "village":
				q.Village = v
			default:
				return errUsage
			}
		}
		printResult(w, r.ResolvePinCodes(ctx, q))
	case "refresh":
		printResult(w, r.Refresh(ctx))
	case "invalidate":
		if err := r.Invalidate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "ok")
	case "cache-get":
		key := locations.CacheKey
		if len(args) > 1 {
			key = args[1]
		}
		b, ok, err := c.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(w, "(miss)")
			return nil
		}
		fmt.Fprintln(w, string(b))
	default:
		return errUsage
	}
	return nil
}

func main() {
	var (
		envFile string
		args    []string
	)
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else {
			args = append(args, os.Args[i])
		}
	}
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	cfg := config.Load()
	logger.Setup()
	ctx := backend.WithToken(context.Background(), os.Getenv("LOCCTL_TOKEN"))

	a, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init error:", err)
		os.Exit(1)
	}
	defer a.Close()

	// 带参数时执行单条命令后退出
	if len(args) > 0 {
		if err := run(ctx, a.Resolver, a.Cache, args, os.Stdout); err != nil {
			if errors.Is(err, errUsage) {
				printHelp(os.Stderr)
			} else {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			a.Close()
			os.Exit(2)
		}
		return
	}

	fmt.Println("locctl ready, cache tiers:", strings.Join(a.Cache.Tiers(), ","))
	printHelp(os.Stdout)
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		parts, err := splitArgs(strings.TrimSpace(in.Text()))
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		if p := strings.ToLower(parts[0]); p == "exit" || p == "quit" {
			return
		}
		if err := run(ctx, a.Resolver, a.Cache, parts, os.Stdout); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Println("bad arguments; see help")
			} else {
				fmt.Println("error:", err)
			}
		}
	}
}
