package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/meta"
)

const bashCompletionScript = `# bash completion for docsite
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_docsite()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "completion diff entries fetch install ls purge serve status --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local cache="--cache-version -V --scope --root -r --manifest -m --storage --bucket --prefix --region --profile --endpoint --timeout --concurrency --tldr"
    local common="$cache --schema --attrs -a --color -c --filter -f --output -o --sort -s --titles -t"

    case "$cmd" in
        install)
            local opts="$cache"
            ;;
        fetch)
            local opts="$cache --head --navigate -n --offline"
            ;;
        serve)
            local opts="$cache --listen -l"
            ;;
        entries)
            local opts="$common --chop"
            ;;
        diff)
            local opts="$common --patch"
            ;;
        purge)
            local opts="$common --all"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --storage)
            COMPREPLY=( $(compgen -W "file memory s3" -- "$cur") )
            return 0
            ;;
        --root|-r)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
        --manifest|-m)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _docsite docsite
`

const zshCompletionScript = `#compdef docsite

_docsite() {
  local -a cmds
  cmds=(
    'completion:generate shell completion script'
    'diff:compare two cache generations'
    'entries:list the entries of a generation'
    'fetch:fetch URLs through the cache worker'
    'install:install and activate the cache worker'
    'ls:list cache generations'
    'purge:delete cache generations'
    'serve:serve the site through the cache worker'
    'status:show the worker registration'
  )

  local -a cache
  cache=(
  '(-V --cache-version)'{-V,--cache-version}'[cache generation]:version'
  '--scope[origin URL]:url'
  '(-r --root)'{-r,--root}'[local origin directory]:directory:_directories'
  '(-m --manifest)'{-m,--manifest}'[web app manifest]:file:_files'
  '--storage[storage backend]:storage:(file memory s3)'
  '--bucket[s3 bucket]:bucket'
  '--prefix[s3 key prefix]:prefix'
  '--region[s3 region]:region'
  '--profile[aws profile]:profile'
  '--endpoint[s3 endpoint]:url'
  '--timeout[network timeout]:duration'
  '--concurrency[parallel precache fetches]:n'
  '--tldr[show tldr page]'
  )

  local -a common
  common=(
  $cache
  '--schema[dump schema]'
  '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'docsite commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    install)
      _arguments -C $cache
      ;;
    fetch)
      _arguments -C \
        $cache \
        '--head[print status and headers]' \
        '(-n --navigate)'{-n,--navigate}'[request as a navigation]' \
        '--offline[simulate a lost network]' \
        '*:url'
      ;;
    serve)
      _arguments -C \
        $cache \
        '(-l --listen)'{-l,--listen}'[listen address]:address'
      ;;
    entries)
      _arguments -C \
        $common \
        '--chop[chop the common URL prefix]' \
        '::generation'
      ;;
    diff)
      _arguments -C \
        $common \
        '--patch[print the manifest delta]' \
        ':old generation' \
        ':new generation'
      ;;
    purge)
      _arguments -C \
        $common \
        '--all[delete every generation]' \
        '*:generation'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _docsite docsite
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(w, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(w, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: docsite completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "docsite completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
